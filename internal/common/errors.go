package common

import "errors"

// Callers match these with errors.Is; services wrap them with extra context.
var (
	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")

	// collaborator failures
	ErrRecognition = errors.New("recognition failed")
	ErrStorage     = errors.New("storage error")

	ErrInvalidToken = errors.New("invalid token")

	// token lifecycle
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
