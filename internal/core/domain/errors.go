package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable     = errors.New("candidate source unavailable")
	ErrAllSourcesUnavailable = errors.New("all candidate sources unavailable")
	ErrPoolNotFound          = errors.New("retrieval pool not found")
	ErrCacheConflict         = errors.New("retrieval pool already exists")
	ErrMessageNotFound       = errors.New("message not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
