package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/ficticia-go/auth"
	"github.com/user/ficticia-go/auth/memory"
	"github.com/user/ficticia-go/config"
	"github.com/user/ficticia-go/observability"
	"github.com/user/ficticia-go/users"
)

type outbox struct {
	mu     sync.Mutex
	bodies []string
}

func (o *outbox) Send(_ context.Context, _, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies = append(o.bodies, body)
	return nil
}

func (o *outbox) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.bodies) == 0 {
		return ""
	}
	return o.bodies[len(o.bodies)-1]
}

func newTestServer(t *testing.T) (*httptest.Server, *outbox) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.AuthConfig{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		JWTIssuer:       "ficticia",
		TokenTTL:        time.Hour,
		ResetTokenTTL:   time.Hour,
		DefaultRole:     auth.RoleUser,
		FrontendBaseURL: "http://localhost:4200",
		BcryptCost:      bcrypt.MinCost,
	}
	userStore, roleStore := memory.NewUserStore(), memory.NewRoleStore()
	require.NoError(t, auth.EnsureRoles(ctx, roleStore, auth.RoleAdmin, auth.RoleUser))

	mails := &outbox{}
	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)
	codec, err := auth.NewJWTCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	require.NoError(t, err)
	svc, err := auth.NewAuthService(userStore, roleStore, auth.NewBcryptHasher(cfg.BcryptCost), codec, mails, cfg,
		auth.WithLogger(logger), auth.WithMetrics(metrics))
	require.NoError(t, err)

	handler := newRouter(routerDeps{
		Server:   config.ServerConfig{AllowedOrigins: []string{"http://localhost:4200"}, RequestTimeout: 5 * time.Second},
		Logger:   logger,
		Auth:     auth.NewHandlers(svc),
		Users:    users.NewUserHandlers(users.NewUserService(userStore, roleStore)),
		Codec:    codec,
		Resolver: svc,
		Metrics:  metrics,
		Registry: registry,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, mails
}

func call(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRouter_AccountLifecycle(t *testing.T) {
	srv, mails := newTestServer(t)

	resp, _ := call(t, http.MethodPost, srv.URL+"/api/auth/register", "", auth.RegisterRequest{
		FullName: "Alice Liddell", Username: "Alice", Email: "Alice@X.com",
		Password: "Secr33t!!", ConfirmPassword: "Secr33t!!", EmployeeID: "EMP-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := call(t, http.MethodPost, srv.URL+"/auth/login", "", auth.LoginRequest{Username: "alice", Password: "Secr33t!!"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var login auth.LoginResponse
	require.NoError(t, json.Unmarshal(raw, &login))

	resp, _ = call(t, http.MethodGet, srv.URL+"/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, raw = call(t, http.MethodGet, srv.URL+"/api/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var profile users.ProfileResponse
	require.NoError(t, json.Unmarshal(raw, &profile))
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, []string{auth.RoleUser}, profile.Roles)

	resp, _ = call(t, http.MethodPost, srv.URL+"/auth/password/forgot", "", auth.ForgotPasswordRequest{Email: "alice@x.com"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	m := regexp.MustCompile(`token=([0-9a-f]{64})`).FindStringSubmatch(mails.last())
	require.Len(t, m, 2, "reset mail must carry the link")

	resp, _ = call(t, http.MethodPost, srv.URL+"/auth/password/reset", "", auth.ResetPasswordRequest{
		Token: m[1], Password: "N3w-Secr3t", ConfirmPassword: "N3w-Secr3t",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = call(t, http.MethodPost, srv.URL+"/auth/login", "", auth.LoginRequest{Username: "alice", Password: "Secr33t!!"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = call(t, http.MethodPost, srv.URL+"/auth/login", "", auth.LoginRequest{Username: "alice", Password: "N3w-Secr3t"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_HealthMetricsAndNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		resp, raw := call(t, http.MethodGet, srv.URL+path, "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"UP"}`, string(raw))
	}

	call(t, http.MethodPost, srv.URL+"/auth/login", "", auth.LoginRequest{Username: "nobody", Password: "x"})
	resp, raw := call(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "ficticia_auth_logins_total")

	resp, raw = call(t, http.MethodGet, srv.URL+"/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(raw), `"path":"/nope"`)
}

func TestRecoverer(t *testing.T) {
	r := chi.NewRouter()
	r.Use(recoverer(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}
