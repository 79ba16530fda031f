package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cypherspark/webhook-gateway/internal/core"
	database "github.com/Cypherspark/webhook-gateway/internal/db"
	httpapi "github.com/Cypherspark/webhook-gateway/internal/http"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func startAPI(t *testing.T) (*httpapi.Server, http.Handler) {
	pool := database.StartTestPostgres(t)
	srv := httpapi.NewServer(pool, testSecret, zerolog.Nop())
	return srv, srv.Router()
}

func signedPost(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", core.ComputeSignature([]byte(testSecret), []byte(body)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, h http.Handler, path string, wantCode int) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	require.Equal(t, wantCode, w.Code, w.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestWebhook_EndToEnd(t *testing.T) {
	srv, h := startAPI(t)

	body := `{"message_id":"m1","from":"+491701234567","to":"+491707654321","ts":"2024-01-01T10:00:00Z","text":"hi"}`

	// 1) first delivery → created
	w := signedPost(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	// 2) identical replay → still 200, still one row
	w = signedPost(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	n, err := srv.Store.CountMessages(t.Context(), core.Filters{})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// 3) list with no filters
	out := getJSON(t, h, "/messages", http.StatusOK)
	items := out["items"].([]any)
	require.Len(t, items, 1)
	meta := out["meta"].(map[string]any)
	require.EqualValues(t, 1, meta["total"])
}

func TestWebhook_MissingSignature(t *testing.T) {
	_, h := startAPI(t)

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"message_id":"m1","from":"+1","to":"+2","ts":"2024-01-01T00:00:00Z"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_BadSignature(t *testing.T) {
	_, h := startAPI(t)

	req := httptest.NewRequest("POST", "/webhook", bytes.NewBufferString(`{"message_id":"m1","from":"+1","to":"+2","ts":"2024-01-01T00:00:00Z"}`))
	req.Header.Set("X-Signature", "0000000000000000000000000000000000000000000000000000000000000000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_ValidationError(t *testing.T) {
	_, h := startAPI(t)

	w := signedPost(t, h, `{"message_id":"m1","from":"12345","to":"+2","ts":"2024-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "validation_error", out["error"])
}

func TestMessages_FiltersAndPagination(t *testing.T) {
	_, h := startAPI(t)

	for i := 0; i < 25; i++ {
		from := "+100"
		if i%5 == 0 {
			from = "+200"
		}
		body := fmt.Sprintf(`{"message_id":"m%02d","from":"%s","to":"+300","ts":"2024-02-01T00:00:%02dZ"}`, i, from, i)
		w := signedPost(t, h, body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	out := getJSON(t, h, "/messages?per_page=10&page=3&order=asc", http.StatusOK)
	require.Len(t, out["items"].([]any), 5)
	meta := out["meta"].(map[string]any)
	require.EqualValues(t, 25, meta["total"])
	require.EqualValues(t, 3, meta["pages"])
	require.EqualValues(t, 10, meta["per_page"])

	out = getJSON(t, h, "/messages?from=%2B200", http.StatusOK)
	require.EqualValues(t, 5, out["meta"].(map[string]any)["total"])

	out = getJSON(t, h, "/messages?start_ts=2024-02-01T00:00:20Z", http.StatusOK)
	require.EqualValues(t, 5, out["meta"].(map[string]any)["total"])

	// junk paging values fall back to defaults
	out = getJSON(t, h, "/messages?page=0&per_page=9999", http.StatusOK)
	require.EqualValues(t, 1, out["meta"].(map[string]any)["page"])
	require.EqualValues(t, 20, out["meta"].(map[string]any)["per_page"])
}

func TestStats(t *testing.T) {
	_, h := startAPI(t)

	day1 := []string{"s1", "s2"}
	for _, id := range day1 {
		w := signedPost(t, h, fmt.Sprintf(`{"message_id":"%s","from":"+111","to":"+9","ts":"2024-01-01T08:00:00Z"}`, id))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := signedPost(t, h, `{"message_id":"s3","from":"+222","to":"+9","ts":"2024-01-02T08:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)

	out := getJSON(t, h, "/stats", http.StatusOK)
	require.EqualValues(t, 3, out["total_messages"])

	byDay := out["messages_by_day"].([]any)
	require.Len(t, byDay, 2)
	first := byDay[0].(map[string]any)
	require.Equal(t, "2024-01-01", first["date"])
	require.EqualValues(t, 2, first["count"])

	top := out["top_senders"].([]any)
	require.Equal(t, "+111", top[0].(map[string]any)["from_msisdn"])
	require.EqualValues(t, 2, top[0].(map[string]any)["count"])

	out = getJSON(t, h, "/stats?top=1", http.StatusOK)
	require.Len(t, out["top_senders"].([]any), 1)

	// a days window in the far past excludes everything
	out = getJSON(t, h, "/stats?days=1", http.StatusOK)
	require.Len(t, out["messages_by_day"].([]any), 0)
}

func TestHealth(t *testing.T) {
	srv, h := startAPI(t)

	getJSON(t, h, "/health/live", http.StatusOK)
	getJSON(t, h, "/health/ready", http.StatusOK)

	// no secret configured → not ready even with a working store
	noSecret := httpapi.NewServer(srv.Store.DB, "", zerolog.Nop())
	out := getJSON(t, noSecret.Router(), "/health/ready", http.StatusServiceUnavailable)
	require.Equal(t, false, out["secret_ok"])
	require.Equal(t, true, out["db_ok"])
}

func TestDocs(t *testing.T) {
	_, h := startAPI(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "/webhook")
}
