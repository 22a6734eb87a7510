package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/tenant-agent-core/internal/console/handler"
	"github.com/xela07ax/tenant-agent-core/internal/console/service"
	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/infra/auth"
)

type memOperators struct {
	op *domain.Operator
}

func (m *memOperators) GetOperatorByUsername(_ context.Context, username string) (*domain.Operator, error) {
	if m.op != nil && m.op.Username == username {
		return m.op, nil
	}
	return nil, nil
}

type memRunSource struct {
	runs []domain.CycleRun
}

func (m *memRunSource) ListRuns(_ context.Context, tenantID string, _ int) ([]domain.CycleRun, error) {
	var out []domain.CycleRun
	for _, r := range m.runs {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRunSource) GetRun(_ context.Context, tenantID string, n int64) (*domain.CycleRun, error) {
	for _, r := range m.runs {
		if r.TenantID == tenantID && r.CycleNumber == n {
			run := r
			return &run, nil
		}
	}
	return nil, nil
}

func newTestServer(t *testing.T) *ConsoleServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	operators := &memOperators{op: &domain.Operator{
		ID:           "op-1",
		Username:     "admin",
		PasswordHash: string(hash),
		Scopes:       map[string]bool{"admin": true},
	}}

	authSvc := service.NewAuthService(
		operators,
		auth.NewBaseValidator(&key.PublicKey),
		auth.NewIssuer(key, time.Hour),
	)

	runs := &memRunSource{runs: []domain.CycleRun{
		{ID: "r-1", TenantID: "t-1", CycleNumber: 1, Status: domain.CycleDone},
		{ID: "r-2", TenantID: "t-1", CycleNumber: 2, Status: domain.CycleFailed},
	}}

	return NewConsoleServer(
		zap.NewNop(),
		authSvc,
		handler.NewAuthHandler(authSvc),
		handler.NewRunHandler(runs),
		nil, // tenant toggles не участвуют в этих тестах
		nil,
	)
}

func login(t *testing.T, srv *ConsoleServer, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestLoginAndProtectedAccess(t *testing.T) {
	srv := newTestServer(t)

	rec := login(t, srv, "admin", "correct-horse")
	require.Equal(t, http.StatusOK, rec.Code)

	var token domain.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))
	assert.Equal(t, "Bearer", token.TokenType)
	require.NotEmpty(t, token.AccessToken)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?tenant=t-1", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp := httptest.NewRecorder()
	srv.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 2, payload.Count)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)

	rec := login(t, srv, "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = login(t, srv, "nobody", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidatesInput(t *testing.T) {
	srv := newTestServer(t)

	// Пустые credentials отстреливаются до базы и bcrypt
	rec := login(t, srv, "", "correct-horse")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = login(t, srv, "  ", "correct-horse")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = login(t, srv, "admin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Мусорное тело и неизвестные поля — тоже 400
	for _, body := range []string{"{not json", `{"username":"admin","password":"x","extra":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestLoginTokenIsNotCacheable(t *testing.T) {
	srv := newTestServer(t)

	rec := login(t, srv, "admin", "correct-horse")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?tenant=t-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/runs?tenant=t-1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := login(t, srv, "admin", "correct-horse")
	require.Equal(t, http.StatusOK, rec.Code)
	var token domain.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&token))

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/t-1/99", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp := httptest.NewRecorder()
	srv.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
