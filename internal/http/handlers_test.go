package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/keyfold/keyfold/internal/command"
	elmemory "github.com/keyfold/keyfold/internal/eventlog/memory"
	rmmemory "github.com/keyfold/keyfold/internal/readmodel/memory"
	"github.com/keyfold/keyfold/internal/security/accesstoken"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := command.NewService(command.Deps{
		Log:    elmemory.New(),
		Index:  rmmemory.New(),
		Access: accesstoken.NewIssuer("keyfold-test", []byte("clave-de-pruebas"), 5*time.Minute),
	})
	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func doDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestReplaceRoleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	realm := uuid.New()
	base := fmt.Sprintf("%s/v1/realms/%s", srv.URL, realm)

	resp, body := doJSON(t, http.MethodPut, base+"/roles", map[string]any{"name": "admin"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "admin", body["name"])
	require.Equal(t, float64(1), body["version"])
	id := body["id"].(string)

	// replace idempotente sobre el mismo id
	resp, body = doJSON(t, http.MethodPut, base+"/roles", map[string]any{"id": id, "name": "admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["version"])

	// nombre duplicado en el mismo realm: 409 con el dueño
	resp, body = doJSON(t, http.MethodPut, base+"/roles", map[string]any{"name": "admin"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "unique_conflict", body["error"])
	require.Equal(t, id, body["holder_id"])
}

func TestDeleteRoleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	realm := uuid.New()
	base := fmt.Sprintf("%s/v1/realms/%s", srv.URL, realm)

	resp, body := doJSON(t, http.MethodPut, base+"/roles", map[string]any{"name": "admin"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	del := doDelete(t, fmt.Sprintf("%s/roles/%s", base, id))
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	// el nombre quedó libre: se puede crear otro rol admin
	resp, body = doJSON(t, http.MethodPut, base+"/roles", map[string]any{"name": "admin"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEqual(t, id, body["id"])

	// borrar un id desconocido: 404
	del = doDelete(t, fmt.Sprintf("%s/roles/%s", base, uuid.New()))
	require.Equal(t, http.StatusNotFound, del.StatusCode)
}

func TestAPIKeyFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	realm := uuid.New()
	base := fmt.Sprintf("%s/v1/realms/%s", srv.URL, realm)

	resp, body := doJSON(t, http.MethodPut, base+"/api-keys", map[string]any{"name": "ci-deploy"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)

	resp, body = doJSON(t, http.MethodPost, base+"/api-keys/authenticate", map[string]any{"token": tok})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["access_token"])

	// token corrupto: credencial inválida, sin detalle de qué falló
	resp, body = doJSON(t, http.MethodPost, base+"/api-keys/authenticate", map[string]any{"token": "KK.basura.mas"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_credentials", body["error"])
}

func TestSessionFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	realm := uuid.New()
	base := fmt.Sprintf("%s/v1/realms/%s", srv.URL, realm)

	resp, body := doJSON(t, http.MethodPost, base+"/sessions", map[string]any{
		"user_id":    uuid.New().String(),
		"persistent": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	refresh, _ := body["refresh_token"].(string)
	require.NotEmpty(t, refresh)
	sess := body["session"].(map[string]any)
	sid := sess["id"].(string)

	resp, body = doJSON(t, http.MethodPost, base+"/sessions/renew", map[string]any{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEqual(t, refresh, body["refresh_token"])

	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/sessions/%s/signout", base, sid), map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, base+"/sessions/renew", map[string]any{"refresh_token": body["refresh_token"]})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_credentials", body["error"])
}

func TestOTPFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	realm := uuid.New()
	base := fmt.Sprintf("%s/v1/realms/%s", srv.URL, realm)

	resp, body := doJSON(t, http.MethodPost, base+"/otp", map[string]any{"code": "483921", "max_attempts": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/otp/%s/validate", base, id), map[string]any{"code": "000000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["valid"])

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/otp/%s/validate", base, id), map[string]any{"code": "483921"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["valid"])
}

func TestBadRealm(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/v1/realms/not-a-uuid/roles", map[string]any{"name": "admin"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["error"])
}
