package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atlasgym/internal/audit"
	"atlasgym/internal/auth"
	"atlasgym/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	enc, err := auth.EncodeSecret("s3cret")
	require.NoError(t, err)
	admin, err := auth.ParseSecret(enc)
	require.NoError(t, err)

	srv, err := New(context.Background(), Options{
		Store:      store.NewMemory(),
		Accounts: []auth.Account{
			{Username: "admin", Role: auth.RoleAdmin, Secret: admin},
			{Username: "dev", Role: auth.RoleDev, Secret: admin},
		},
		Challenge:  admin,
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
		LoginRate:  100,
		Location:   time.UTC,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *Server, user, pw string) string {
	t.Helper()
	w := call(t, srv, http.MethodPost, "/login", "", `{"username":"`+user+`","password":"`+pw+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Token
}

func TestPublicRoutes(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, "# metrics", call(t, srv, http.MethodGet, "/metrics", "", "").Body.String())
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/members", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/members", "garbage", "").Code)
}

func TestStaffAccountLifecycle(t *testing.T) {
	srv := newTestServer(t)
	adminToken := login(t, srv, "admin", "s3cret")

	w := call(t, srv, http.MethodPost, "/staff", adminToken, `{"name":"Caja Uno","username":"caja","password":"pw-caja"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	staffToken := login(t, srv, "CAJA", "pw-caja")
	w = call(t, srv, http.MethodGet, "/me/sections", staffToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"staff"`)

	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodGet, "/history", staffToken, "").Code)
	assert.Equal(t, http.StatusForbidden, call(t, srv, http.MethodPut, "/plans/prices", staffToken, `{"prices":{"monthly":1}}`).Code)

	w = call(t, srv, http.MethodGet, "/history", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []audit.Entry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.StaffRegistered, entries[len(entries)-1].Type)

	w = call(t, srv, http.MethodGet, "/dashboard", staffToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"visitsToday":0`)
}

func TestForcedLogoutEndsSession(t *testing.T) {
	srv := newTestServer(t)
	adminToken := login(t, srv, "admin", "s3cret")
	devToken := login(t, srv, "dev", "s3cret")

	w := call(t, srv, http.MethodPost, "/staff", adminToken, `{"name":"Otro Admin","username":"Admin","password":"x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, srv, http.MethodPost, "/staff", adminToken, `{"name":"Caja Uno","username":"caja","password":"pw-caja"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	old := login(t, srv, "caja", "pw-caja")
	require.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/me/sections", old, "").Code)

	require.Equal(t, http.StatusNoContent, call(t, srv, http.MethodPost, "/staff/"+created.ID+"/logout", devToken, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/me/sections", old, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/me/sections", old, "").Code)

	fresh := login(t, srv, "caja", "pw-caja")
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/me/sections", fresh, "").Code)
}
