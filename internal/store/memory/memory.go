package memory

import (
	"sync"

	"github.com/rikhii20/DoKaka/internal/model"
)

// Store keeps credential records in process memory. It is used when no
// database is configured and in tests.
type Store struct {
	mu sync.Mutex

	users map[string]model.User
	// username -> id
	byUsername map[string]string
}

func NewStore() *Store {
	return &Store{
		users:      make(map[string]model.User),
		byUsername: make(map[string]string),
	}
}

type errWithCode string

func (e errWithCode) Error() string { return string(e) }
