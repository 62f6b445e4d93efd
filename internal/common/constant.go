// Package common contains constants, sentinel errors and small helpers
// shared by every receiptkeeper component.
package common

// AuthorizationHeader carries the bearer access token on inbound requests.
const AuthorizationHeader = "Authorization"

// BearerScheme is the prefix expected in AuthorizationHeader.
const BearerScheme = "Bearer "
