package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/rikhii20/DoKaka/internal/auth"
	"github.com/rikhii20/DoKaka/internal/logging"
)

const (
	msgRegistered = "Successfully to register"
	msgLoggedIn   = "Logged in successfully"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	start := time.Now()

	var req auth.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeAuthError(w, r, opRegister, start, err)
		return
	}

	res, err := s.auth.Register(r.Context(), req)
	if err != nil {
		s.writeAuthError(w, r, opRegister, start, err)
		return
	}

	s.metrics.observe(opRegister, outcomeSuccess, time.Since(start))
	writeSuccess(w, http.StatusCreated, msgRegistered, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	start := time.Now()

	var req auth.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeAuthError(w, r, opLogin, start, err)
		return
	}

	res, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.writeAuthError(w, r, opLogin, start, err)
		return
	}

	s.metrics.observe(opLogin, outcomeSuccess, time.Since(start))
	writeSuccess(w, http.StatusOK, msgLoggedIn, res)
}

// classifyError maps an auth flow error to its response. Anything outside the
// known taxonomy is a server error that reports the error's own message.
func classifyError(err error) (status int, msg string, outcome string) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message, outcomeInvalid
	case errors.Is(err, auth.ErrDuplicateUsername):
		return http.StatusBadRequest, auth.MsgDuplicateUsername, outcomeDuplicate
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.MsgInvalidCredentials, outcomeUnauthorized
	default:
		return http.StatusInternalServerError, err.Error(), outcomeError
	}
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, op string, start time.Time, err error) {
	status, msg, outcome := classifyError(err)
	if status == http.StatusInternalServerError {
		logging.LogError(r.Context(), s.logger, op+" failed", err, "request_id", r.Header.Get(requestIDHeader))
	}
	s.metrics.observe(op, outcome, time.Since(start))
	writeError(w, status, msg)
}
