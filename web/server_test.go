// ABOUTME: Tests for the HTTP API routes
// ABOUTME: Drives the chi router with httptest over an in-memory app
package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.User.ID = "u1"
	cfg.Deck.Timezone = "UTC"

	a, err := app.OpenInMemory(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a, "test")
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func createContact(t *testing.T, srv *Server, name string) string {
	t.Helper()
	w := do(t, srv, "POST", "/api/contacts", `{"name":"`+name+`","tags":["friend"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["version"])
	assert.Equal(t, true, resp["db"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	createContact(t, srv, "Ada")

	w := do(t, srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kith_")
}

func TestContactsRoutes(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/contacts", `{"tags":["friend"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/contacts", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	createContact(t, srv, "Ada Lovelace")
	createContact(t, srv, "Grace Hopper")

	w = do(t, srv, "GET", "/api/contacts?q=ada", "")
	require.Equal(t, http.StatusOK, w.Code)
	contacts := decode(t, w)["contacts"].([]any)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada Lovelace", contacts[0].(map[string]any)["name"])

	w = do(t, srv, "GET", "/api/contacts?user_id=someone-else", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["contacts"])
}

func TestScoreRoute(t *testing.T) {
	srv := testServer(t)
	id := createContact(t, srv, "Ada")

	w := do(t, srv, "GET", "/api/contacts/"+id+"/score", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "contact", resp["model"])
	assert.Equal(t, id, resp["contact_id"])

	w = do(t, srv, "GET", "/api/contacts/missing/score", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCadenceRoute(t *testing.T) {
	srv := testServer(t)
	id := createContact(t, srv, "Ada")

	w := do(t, srv, "PUT", "/api/contacts/"+id+"/cadence", `{"cadence_days":-3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "PUT", "/api/contacts/"+id+"/cadence", `{"cadence_days":14}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(14), decode(t, w)["cadence_days"])
}

func TestEmitActionRoute(t *testing.T) {
	srv := testServer(t)
	id := createContact(t, srv, "Ada")

	w := do(t, srv, "POST", "/api/actions", `{"contact_id":"`+id+`","action_id":"warp_drive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/actions", `{"contact_id":"missing","action_id":"sms_sent"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, "POST", "/api/actions", `{"contact_id":"`+id+`","action_id":"email_thread_active"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["emitted"])

	w = do(t, srv, "POST", "/api/actions", `{"contact_id":"`+id+`","action_id":"sms_sent","channel":"sms"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["emitted"])
	jobID, ok := resp["job_id"].(string)
	require.True(t, ok)

	w = do(t, srv, "GET", "/api/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "queued", decode(t, w)["status"])

	w = do(t, srv, "POST", "/api/jobs/"+jobID+"/retry", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, "GET", "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInteractionAndOutcomeRoutes(t *testing.T) {
	srv := testServer(t)
	id := createContact(t, srv, "Ada")

	w := do(t, srv, "POST", "/api/interactions", `{"type":"smoke_signal","contact_ids":["`+id+`"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/interactions", `{"type":"call_made","contact_ids":["`+id+`"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["id"])

	w = do(t, srv, "POST", "/api/outcomes", `{"contact_id":"`+id+`","sentiment":"meh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/outcomes", `{"contact_id":"`+id+`","sentiment":"positive","note":"great call"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "positive", decode(t, w)["sentiment"])
}

func TestDeckRoutes(t *testing.T) {
	srv := testServer(t)
	createContact(t, srv, "Ada")
	createContact(t, srv, "Bea")

	w := do(t, srv, "GET", "/api/deck/quota", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["exhausted"])

	w = do(t, srv, "POST", "/api/deck", `{"max_cards":-2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/deck", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cards := decode(t, w)["cards"].([]any)
	require.Len(t, cards, 2)
	cardID := cards[0].(map[string]any)["id"].(string)

	w = do(t, srv, "GET", "/api/deck", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["cards"], 2)

	w = do(t, srv, "GET", "/api/deck/quota", "")
	assert.Equal(t, true, decode(t, w)["exhausted"])

	w = do(t, srv, "POST", "/api/deck/cards/"+cardID+"/status", `{"status":"skipped"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "skipped", decode(t, w)["status"])

	w = do(t, srv, "POST", "/api/deck/cards/"+cardID+"/status", `{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, "POST", "/api/deck/cards/nope/status", `{"status":"completed"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRoutes(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/archive", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["archived_dates"])

	w = do(t, srv, "GET", "/api/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["records"])

	w = do(t, srv, "GET", "/api/history?from=2026-03-01&to=later", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "GET", "/api/streak?days=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(0), resp["streak"])
	assert.Equal(t, float64(7), resp["window_days"])
}
