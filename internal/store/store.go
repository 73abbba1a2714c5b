package store

import (
	"context"
	"errors"

	"github.com/rikhii20/DoKaka/internal/model"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
)

// Store is the credential store. Implementations must enforce username
// uniqueness themselves and report a collision as ErrConflict.
type Store interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}
