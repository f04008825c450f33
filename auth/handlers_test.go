package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/auth"
)

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperror.ErrorResponse {
	t.Helper()
	var body apperror.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleRegister(t *testing.T) {
	f := newFixture(t)
	h := auth.NewHandlers(f.svc)

	rec := postJSON(t, h.HandleRegister(), "/auth/register", aliceRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp auth.RegisterResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, auth.RegisterResponse{Username: "alice", Roles: []string{auth.RoleUser}, Enabled: true}, resp)

	rec = postJSON(t, h.HandleRegister(), "/auth/register", aliceRequest())
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Conflict", body.Error)
	assert.Equal(t, "/auth/register", body.Path)

	mismatch := aliceRequest()
	mismatch.Username, mismatch.Email = "bob", "bob@x.com"
	mismatch.ConfirmPassword = "Other-Secr3t"
	rec = postJSON(t, h.HandleRegister(), "/auth/register", mismatch)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, aliceRequest())
	h := auth.NewHandlers(f.svc)

	rec := postJSON(t, h.HandleLogin(), "/auth/login", auth.LoginRequest{Username: "alice", Password: "Secr33t!!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp auth.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.Username)

	rec = postJSON(t, h.HandleLogin(), "/auth/login", auth.LoginRequest{Username: "alice", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h.HandleLogin(), "/auth/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec).Message)
}

func TestHandleForgotPassword(t *testing.T) {
	f := newFixture(t)
	h := auth.NewHandlers(f.svc)

	rec := postJSON(t, h.HandleForgotPassword(), "/auth/password/forgot", auth.ForgotPasswordRequest{Email: "nobody@x.com"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandleResetPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, aliceRequest())
	token := f.requestReset(t, "alice@x.com")
	h := auth.NewHandlers(f.svc)

	bad := postJSON(t, h.HandleResetPassword(), "/auth/password/reset", auth.ResetPasswordRequest{
		Token: "nope", Password: "N3w-Secr3t", ConfirmPassword: "N3w-Secr3t",
	})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.True(t, strings.Contains(decodeError(t, bad).Message, "reset token"))

	rec := postJSON(t, h.HandleResetPassword(), "/auth/password/reset", auth.ResetPasswordRequest{
		Token: token, Password: "N3w-Secr3t", ConfirmPassword: "N3w-Secr3t",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWriteError_HidesUnexpectedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	auth.WriteError(rec, req, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	raw := rec.Body.String()
	assert.NotContains(t, raw, assert.AnError.Error())
	body := decodeError(t, rec)
	assert.Equal(t, "an unexpected error occurred", body.Message)
}
