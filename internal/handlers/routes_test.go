package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"visitas/internal/audit"
	"visitas/internal/database/dbtest"
	"visitas/internal/metrics"
	"visitas/internal/models"
	"visitas/internal/repository"
	"visitas/internal/security"
	"visitas/internal/service"
)

const testPassword = "correct horse"

type api struct {
	t      *testing.T
	server *httptest.Server
	svc    *service.Services
	admin  *models.User
	token  string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := dbtest.Open(t)
	logger := zaptest.NewLogger(t)
	m := metrics.New()

	emitter := audit.NewEmitter(audit.NewSQLSink(repository.NewTimelineRepository(db)), logger, m)
	svc := service.New(db, service.Deps{
		Emitter: emitter,
		Metrics: m,
		Logger:  logger,
		Tokens:  security.NewTokenIssuer("test-secret", time.Hour),
	})
	admin, err := svc.Auth.Bootstrap(context.Background(), service.BootstrapInput{
		Community: "San José",
		Name:      "Marisol",
		Email:     "marisol@example.com",
		Password:  testPassword,
	})
	require.NoError(t, err)

	server := httptest.NewServer(NewRouter(svc, m, logger))
	t.Cleanup(server.Close)

	a := &api{t: t, server: server, svc: svc, admin: admin}
	a.token = a.login("marisol@example.com", testPassword)
	return a
}

func (a *api) login(addr, password string) string {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": addr, "password": password})
	require.Equal(a.t, http.StatusOK, resp.StatusCode)
	var res struct {
		Token string `json:"token"`
	}
	decode(a.t, resp, &res)
	return res.Token
}

// do sends body as JSON with an optional bearer token
func (a *api) do(method, path, token string, body any) *http.Response {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, r)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	resp := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestRequireAuth(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.do(http.MethodGet, "/api/families", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
			var body errorBody
			decode(t, resp, &body)
			assert.Equal(t, "UNAUTHENTICATED", string(body.Code))
		})
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	a := newAPI(t)
	resp := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "marisol@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newAPI(t)

	resp := a.do(http.MethodGet, "/api/auth/me", a.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me models.User
	decode(t, resp, &me)
	assert.Equal(t, a.admin.ID, me.ID)

	resp = a.do(http.MethodPost, "/api/auth/logout", a.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/auth/me", a.token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFamilyLifecycle(t *testing.T) {
	a := newAPI(t)

	resp := a.do(http.MethodPost, "/api/barrios", a.token, map[string]string{"name": "Centro"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var barrio models.Barrio
	decode(t, resp, &barrio)

	resp = a.do(http.MethodPost, "/api/families", a.token, map[string]any{"name": "Gómez", "barrioId": barrio.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var family map[string]any
	decode(t, resp, &family)
	id := int64(family["id"].(float64))
	version := family["updatedAt"].(string)
	path := "/api/families/" + strconv.FormatInt(id, 10)

	// echoing updatedAt back succeeds
	resp = a.do(http.MethodPut, path, a.token, map[string]any{"address": "Calle 1", "lastUpdatedAt": version})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Family
	decode(t, resp, &updated)
	assert.Equal(t, "Calle 1", updated.Address)

	// the old version is now stale
	resp = a.do(http.MethodPut, path, a.token, map[string]any{"address": "Calle 2", "lastUpdatedAt": version})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var conflict struct {
		Code           string        `json:"code"`
		ServerVersion  string        `json:"serverVersion"`
		ServerSnapshot models.Family `json:"serverSnapshot"`
	}
	decode(t, resp, &conflict)
	assert.Equal(t, "EDIT_CONFLICT", conflict.Code)
	assert.NotEqual(t, version, conflict.ServerVersion)
	assert.Equal(t, "Calle 1", conflict.ServerSnapshot.Address)

	resp = a.do(http.MethodGet, path, a.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Family
	decode(t, resp, &got)
	assert.Equal(t, "Calle 1", got.Address)

	resp = a.do(http.MethodDelete, path, a.token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/families", a.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var families []models.Family
	decode(t, resp, &families)
	assert.Empty(t, families)

	resp = a.do(http.MethodGet, "/api/families?includeInactive=true", a.token, nil)
	decode(t, resp, &families)
	assert.Len(t, families, 1)

	resp = a.do(http.MethodGet, "/api/timeline?entityType=family&entityId="+strconv.FormatInt(id, 10), a.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []models.TimelineEvent
	decode(t, resp, &events)
	require.Len(t, events, 3)
	assert.Equal(t, models.ActionDelete, events[0].Action)
}

func TestBadRequests(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad id", http.MethodGet, "/api/families/abc", "", http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/families/999", "", http.StatusNotFound},
		{"malformed json", http.MethodPost, "/api/families", "{", http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/barrios", "{}", http.StatusBadRequest},
		{"bad query int", http.MethodGet, "/api/visits?familyId=x", "", http.StatusBadRequest},
		{"bad query date", http.MethodGet, "/api/visits?from=yesterday", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/timeline?limit=-1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, a.server.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+a.token)
			resp, err := a.server.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestInvitedVisitorPermissions(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()

	resp := a.do(http.MethodPost, "/api/members", a.token, map[string]string{"firstName": "Luis"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var member models.Member
	decode(t, resp, &member)

	inv, err := a.svc.Invitations.Create(ctx, a.admin, service.InvitationInput{
		MemberID: member.ID, Email: "luis@example.com", Role: models.RoleVisitor,
	})
	require.NoError(t, err)

	resp = a.do(http.MethodPost, "/api/invitations/"+inv.Code+"/accept", "", map[string]string{
		"name": "Luis", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	visitor := a.login("luis@example.com", testPassword)
	resp = a.do(http.MethodPost, "/api/families", visitor, map[string]string{"name": "Gómez"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/export", visitor, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExportDownload(t *testing.T) {
	a := newAPI(t)
	resp := a.do(http.MethodPost, "/api/barrios", a.token, map[string]string{"name": "Centro"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = a.do(http.MethodGet, "/api/export", a.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	var archive service.Archive
	decode(t, resp, &archive)
	assert.Equal(t, service.ArchiveVersion, archive.Version)
	assert.Len(t, archive.Barrios, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	a.do(http.MethodGet, "/api/barrios", a.token, nil)

	resp := a.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `visitas_http_requests_total{method="GET",route="GET /api/barrios",status="200"} 1`)
}
