// Package auth implements registration and login: request validation,
// password hashing, credential lookup and token issuance.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/rikhii20/DoKaka/internal/model"
	"github.com/rikhii20/DoKaka/internal/store"
)

// Result is returned by a successful Register or Login.
type Result struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// Service runs the register and login flows against a credential store.
type Service struct {
	store  store.Store
	hasher PasswordHasher
	tokens *TokenIssuer
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(st store.Store, hasher PasswordHasher, tokens *TokenIssuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, hasher: hasher, tokens: tokens, logger: logger}
}

// Register validates req, rejects a taken username, stores the new record
// and issues a token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	if err := ValidateRegister(req); err != nil {
		return Result{}, err
	}

	_, err := s.store.GetUserByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return Result{}, ErrDuplicateUsername
	case !errors.Is(err, store.ErrNotFound):
		return Result{}, oops.Code("AUTH_LOOKUP_FAILED").With("username", req.Username).Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Result{}, oops.Code("AUTH_HASH_FAILED").With("username", req.Username).Wrap(err)
	}

	created, err := s.store.CreateUser(ctx, model.User{
		Name:         req.Name,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		// The store's unique constraint is the authoritative guard; a
		// concurrent registration can slip past the lookup above.
		if errors.Is(err, store.ErrConflict) {
			return Result{}, ErrDuplicateUsername
		}
		return Result{}, oops.Code("AUTH_CREATE_FAILED").With("username", req.Username).Wrap(err)
	}

	res, err := s.issue(created)
	if err != nil {
		return Result{}, err
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID, "username", created.Username)
	return res, nil
}

// Login validates req and checks the password against the stored hash.
// An unknown username and a wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Result, error) {
	if err := ValidateLogin(req); err != nil {
		return Result{}, err
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.burnVerify(req.Password)
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, oops.Code("AUTH_LOOKUP_FAILED").With("username", req.Username).Wrap(err)
	}

	ok, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return Result{}, oops.Code("AUTH_VERIFY_FAILED").With("user_id", user.ID).Wrap(err)
	}
	if !ok {
		return Result{}, ErrInvalidCredentials
	}

	res, err := s.issue(*user)
	if err != nil {
		return Result{}, err
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "username", user.Username)
	return res, nil
}

func (s *Service) issue(u model.User) (Result, error) {
	token, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return Result{}, oops.Code("AUTH_TOKEN_FAILED").With("user_id", u.ID).Wrap(err)
	}
	return Result{Token: token, User: u.Public()}, nil
}

// burnVerify runs one verification against a throwaway hash so that a
// lookup miss takes about as long as a password mismatch.
func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("dummy-Passw0rd!")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}
