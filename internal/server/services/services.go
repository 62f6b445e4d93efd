// Package services contains the server-side business logic. Services take
// the *sql.DB pool and a repository manager, and open transactions with
// dbx.WithTx where several writes must succeed together.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
)

// withTimeout bounds ctx by d. A zero d leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ensure wraps err in sentinel unless it already carries it.
func ensure(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
