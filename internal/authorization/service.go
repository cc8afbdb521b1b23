package authorization

import (
	"context"
	"errors"
)

type Service interface {
	// Authorize checks that the caller in ctx holds a role granting action on object.
	Authorize(ctx context.Context, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
