package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/rikhii20/DoKaka/internal/auth"
	"github.com/rikhii20/DoKaka/internal/config"
	"github.com/rikhii20/DoKaka/internal/logging"
	"github.com/rikhii20/DoKaka/internal/model"
	"github.com/rikhii20/DoKaka/internal/store"
	"github.com/rikhii20/DoKaka/internal/store/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type testAuthResult struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// Helper to create a test server over the given store.
func newTestServer(t *testing.T, st store.Store) (*Server, *auth.TokenIssuer) {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", auth.DefaultTokenTTL)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	logger := logging.Setup("dokaka", "test", "json", io.Discard)
	svc := auth.NewService(st, auth.NewBcryptHasher(bcrypt.MinCost), tokens, logger)
	cfg := config.Config{SecretToken: "test-secret", APIPrefix: "/api/v1"}
	return NewServer(cfg, svc, logger), tokens
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func decodeAuthResult(t *testing.T, env testEnvelope) testAuthResult {
	t.Helper()
	var res testAuthResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func expectFailure(t *testing.T, rec *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != http.StatusText(code) {
		t.Errorf("expected envelope status %q, got %q", http.StatusText(code), env.Status)
	}
	if env.Message != msg {
		t.Errorf("expected message %q, got %q", msg, env.Message)
	}
	if string(env.Result) != "{}" {
		t.Errorf("expected empty result object, got %s", env.Result)
	}
}

const annBody = `{"name":"Ann","username":"annwilliams","password":"Str0ng!Pass"}`

func TestRegisterThenLogin_RoundTrip(t *testing.T) {
	server, tokens := newTestServer(t, memory.NewStore())
	h := server.Handler()

	regRec := do(t, h, http.MethodPost, "/api/v1/register", annBody)
	if regRec.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, regRec.Code, regRec.Body.String())
	}
	regEnv := decodeEnvelope(t, regRec)
	if regEnv.Status != "Success" || regEnv.Message != "Successfully to register" {
		t.Errorf("unexpected envelope: %+v", regEnv)
	}
	regRes := decodeAuthResult(t, regEnv)
	if regRes.User != (model.PublicUser{Name: "Ann", Username: "annwilliams"}) {
		t.Errorf("unexpected user: %+v", regRes.User)
	}
	regClaims, err := tokens.Parse(regRes.Token)
	if err != nil {
		t.Fatalf("register token invalid: %v", err)
	}
	if regClaims.Username != "annwilliams" || regClaims.UserID == "" {
		t.Errorf("unexpected claims: %+v", regClaims)
	}
	if got := regClaims.ExpiresAt.Sub(regClaims.IssuedAt.Time); got != 24*time.Hour {
		t.Errorf("expected 24h token lifetime, got %s", got)
	}

	loginRec := do(t, h, http.MethodPost, "/api/v1/login", `{"username":"annwilliams","password":"Str0ng!Pass"}`)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, loginRec.Code, loginRec.Body.String())
	}
	loginEnv := decodeEnvelope(t, loginRec)
	if loginEnv.Status != "Success" || loginEnv.Message != "Logged in successfully" {
		t.Errorf("unexpected envelope: %+v", loginEnv)
	}
	loginRes := decodeAuthResult(t, loginEnv)
	if loginRes.User != regRes.User {
		t.Errorf("login user %+v differs from registered %+v", loginRes.User, regRes.User)
	}
	loginClaims, err := tokens.Parse(loginRes.Token)
	if err != nil {
		t.Fatalf("login token invalid: %v", err)
	}
	if loginClaims.UserID != regClaims.UserID {
		t.Errorf("expected same user id, got %q and %q", regClaims.UserID, loginClaims.UserID)
	}

	for _, body := range []string{regRec.Body.String(), loginRec.Body.String()} {
		if strings.Contains(body, "Str0ng!Pass") || strings.Contains(body, "$2a$") || strings.Contains(body, "password") {
			t.Errorf("response leaks credential material: %s", body)
		}
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	h := server.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/register", annBody); rec.Code != http.StatusCreated {
		t.Fatalf("first register: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, "/api/v1/register", annBody)
	expectFailure(t, rec, http.StatusBadRequest, "Username has already exists")
}

func TestLogin_EnumerationResistance(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	h := server.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/register", annBody); rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}

	wrongPassword := do(t, h, http.MethodPost, "/api/v1/login", `{"username":"annwilliams","password":"Wr0ng!Pass"}`)
	unknownUser := do(t, h, http.MethodPost, "/api/v1/login", `{"username":"nobodyhere","password":"Str0ng!Pass"}`)

	expectFailure(t, wrongPassword, http.StatusUnauthorized, "Invalid username and password combination")
	expectFailure(t, unknownUser, http.StatusUnauthorized, "Invalid username and password combination")
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", wrongPassword.Body.String(), unknownUser.Body.String())
	}
}

func TestAuth_ValidationErrors(t *testing.T) {
	policy := `"password" should contain a mix of uppercase and lowercase letters, numbers, and special characters`

	tests := []struct {
		name string
		path string
		body string
		msg  string
	}{
		{"register short username", "/api/v1/register", `{"name":"Ann","username":"ann","password":"Str0ng!Pass"}`, `"username" length must be at least 5 characters long`},
		{"register missing name", "/api/v1/register", `{"username":"annwilliams","password":"Str0ng!Pass"}`, `"name" is required`},
		{"register weak password", "/api/v1/register", `{"name":"Ann","username":"annwilliams","password":"weakpass"}`, policy},
		{"register empty body", "/api/v1/register", ``, `"name" is required`},
		{"register unknown field", "/api/v1/register", `{"name":"Ann","username":"annwilliams","password":"Str0ng!Pass","role":"admin"}`, `"role" is not allowed`},
		{"register non-string field", "/api/v1/register", `{"name":"Ann","username":12345,"password":"Str0ng!Pass"}`, `"username" must be a string`},
		{"register malformed json", "/api/v1/register", `{"name":`, "request body must be a valid JSON object"},
		{"register trailing data", "/api/v1/register", annBody + ` trailing`, "request body must be a valid JSON object"},
		{"register second object", "/api/v1/register", annBody + `{}`, "request body must be a valid JSON object"},
		{"register empty name", "/api/v1/register", `{"name":"","username":"annwilliams","password":"Str0ng!Pass"}`, `"name" is not allowed to be empty`},
		{"register null name", "/api/v1/register", `{"name":null,"username":"annwilliams","password":"Str0ng!Pass"}`, `"name" must be a string`},
		{"login weak password", "/api/v1/login", `{"username":"annwilliams","password":"NoDigits!"}`, policy},
		{"login short username", "/api/v1/login", `{"username":"ann","password":"Str0ng!Pass"}`, `"username" length must be at least 5 characters long`},
		{"login missing password", "/api/v1/login", `{"username":"annwilliams"}`, `"password" is required`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, memory.NewStore())
			rec := do(t, server.Handler(), http.MethodPost, tt.path, tt.body)
			expectFailure(t, rec, http.StatusBadRequest, tt.msg)
		})
	}
}

func TestAuth_FormBodies(t *testing.T) {
	server, tokens := newTestServer(t, memory.NewStore())
	h := server.Handler()

	regRec := doForm(t, h, "/api/v1/register", url.Values{
		"name":     {"Ann"},
		"username": {"annwilliams"},
		"password": {"Str0ng!Pass"},
	})
	if regRec.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, regRec.Code, regRec.Body.String())
	}
	regRes := decodeAuthResult(t, decodeEnvelope(t, regRec))
	if regRes.User != (model.PublicUser{Name: "Ann", Username: "annwilliams"}) {
		t.Errorf("unexpected user: %+v", regRes.User)
	}

	loginRec := doForm(t, h, "/api/v1/login", url.Values{
		"username": {"annwilliams"},
		"password": {"Str0ng!Pass"},
	})
	if loginRec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, loginRec.Code, loginRec.Body.String())
	}
	loginEnv := decodeEnvelope(t, loginRec)
	if loginEnv.Message != "Logged in successfully" {
		t.Errorf("unexpected message %q", loginEnv.Message)
	}
	if _, err := tokens.Parse(decodeAuthResult(t, loginEnv).Token); err != nil {
		t.Errorf("login token invalid: %v", err)
	}
}

func TestAuth_FormValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"unknown field", url.Values{"name": {"Ann"}, "username": {"annwilliams"}, "password": {"Str0ng!Pass"}, "role": {"admin"}}, `"role" is not allowed`},
		{"repeated field", url.Values{"name": {"Ann", "Bob"}, "username": {"annwilliams"}, "password": {"Str0ng!Pass"}}, `"name" must be a string`},
		{"empty name", url.Values{"name": {""}, "username": {"annwilliams"}, "password": {"Str0ng!Pass"}}, `"name" is not allowed to be empty`},
		{"missing name", url.Values{"username": {"annwilliams"}, "password": {"Str0ng!Pass"}}, `"name" is required`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, memory.NewStore())
			rec := doForm(t, server.Handler(), "/api/v1/register", tt.form)
			expectFailure(t, rec, http.StatusBadRequest, tt.msg)
		})
	}
}

// failingStore returns err from every call.
type failingStore struct{ err error }

func (s failingStore) CreateUser(context.Context, model.User) (model.User, error) {
	return model.User{}, s.err
}

func (s failingStore) GetUserByUsername(context.Context, string) (*model.User, error) {
	return nil, s.err
}

func TestAuth_InternalErrorFallback(t *testing.T) {
	server, _ := newTestServer(t, failingStore{err: errors.New("connection refused")})
	h := server.Handler()

	expectFailure(t, do(t, h, http.MethodPost, "/api/v1/register", annBody), http.StatusInternalServerError, "connection refused")
	expectFailure(t, do(t, h, http.MethodPost, "/api/v1/login", `{"username":"annwilliams","password":"Str0ng!Pass"}`), http.StatusInternalServerError, "connection refused")
}

type panickingStore struct{}

func (panickingStore) CreateUser(context.Context, model.User) (model.User, error) {
	panic(errors.New("driver panic"))
}

func (panickingStore) GetUserByUsername(context.Context, string) (*model.User, error) {
	panic(errors.New("driver panic"))
}

func TestAuth_PanicIsRecovered(t *testing.T) {
	server, _ := newTestServer(t, panickingStore{})
	rec := do(t, server.Handler(), http.MethodPost, "/api/v1/login", `{"username":"annwilliams","password":"Str0ng!Pass"}`)
	expectFailure(t, rec, http.StatusInternalServerError, "driver panic")
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	h := server.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestAuth_MethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	rec := do(t, server.Handler(), http.MethodGet, "/api/v1/register", "")
	expectFailure(t, rec, http.StatusMethodNotAllowed, "POST only")
}

func TestNotFound(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	rec := do(t, server.Handler(), http.MethodPost, "/api/v1/logout", "")
	expectFailure(t, rec, http.StatusNotFound, "route POST /api/v1/logout not found")
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	rec := do(t, server.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "Success" || !strings.Contains(string(env.Result), `"ok":true`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestMetrics_CountsOutcomes(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	h := server.Handler()

	do(t, h, http.MethodPost, "/api/v1/register", annBody)
	do(t, h, http.MethodPost, "/api/v1/register", annBody)
	do(t, h, http.MethodPost, "/api/v1/login", `{"username":"annwilliams","password":"Wr0ng!Pass"}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`dokaka_auth_requests_total{operation="register",outcome="success"} 1`,
		`dokaka_auth_requests_total{operation="register",outcome="duplicate"} 1`,
		`dokaka_auth_requests_total{operation="login",outcome="unauthorized"} 1`,
		`dokaka_auth_request_duration_seconds_count{operation="register"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("unexpected allow-headers %q", got)
	}
}

func TestCORSActualRequest(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/register", strings.NewReader(annBody))
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("unexpected allow-origin %q", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	server, _ := newTestServer(t, memory.NewStore())
	h := server.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Errorf("expected generated %s header", requestIDHeader)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc123" {
		t.Errorf("expected propagated request id, got %q", got)
	}
}
