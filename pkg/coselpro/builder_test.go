package coselpro_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// recorder answers every request with status and body and keeps the last
// request it saw.
type recorder struct {
	mu     sync.Mutex
	last   recordedRequest
	status int
	body   string
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	rec.mu.Lock()
	rec.last = recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	}
	status, reply := rec.status, rec.body
	rec.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (rec *recorder) request() recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.last
}

func newRecordingSession(t *testing.T, rec *recorder) *coselpro.Session {
	t.Helper()

	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	client := coselpro.NewClient(srv.URL)
	client.Cache = nil

	session, err := coselpro.NewSession(client, coselpro.NewToken("bearer-abc", time.Now().Add(time.Hour), "Consultation"))
	require.NoError(t, err)
	return session
}

func TestBuilderReadRequest(t *testing.T) {
	t.Parallel()

	rec := &recorder{body: `[]`}
	session := newRecordingSession(t, rec)

	b, err := session.Scoped("companies")
	require.NoError(t, err)

	var rows []map[string]any
	err = b.Select("id,name").
		Eq("country", "FR").
		Neq("status", "closed").
		Gte("reliability", "0.5").
		ILike("name", "%acme%").
		In("division_id", "1", "2", "a b").
		Is("deleted_at", "null").
		Order("name", true).
		Order("id", false).
		Limit(10).
		Offset(20).
		Decode(context.Background(), &rows)
	require.NoError(t, err)

	got := rec.request()
	require.Equal(t, http.MethodGet, got.Method)
	require.Equal(t, "/companies", got.Path)
	require.Equal(t, "id,name", got.Query.Get("select"))
	require.Equal(t, "eq.FR", got.Query.Get("country"))
	require.Equal(t, "neq.closed", got.Query.Get("status"))
	require.Equal(t, "gte.0.5", got.Query.Get("reliability"))
	require.Equal(t, "ilike.*acme*", got.Query.Get("name"))
	require.Equal(t, `in.(1,2,"a b")`, got.Query.Get("division_id"))
	require.Equal(t, "is.null", got.Query.Get("deleted_at"))
	require.Equal(t, "name.asc,id.desc", got.Query.Get("order"))
	require.Equal(t, "10", got.Query.Get("limit"))
	require.Equal(t, "20", got.Query.Get("offset"))

	require.Equal(t, "Bearer bearer-abc", got.Header.Get("Authorization"))
	require.Equal(t, coselpro.DefaultSchema, got.Header.Get("Accept-Profile"))
	require.Empty(t, got.Header.Get("Content-Profile"))
	require.Equal(t, "application/json", got.Header.Get("Accept"))
	require.NotEmpty(t, got.Header.Get("X-Request-ID"))
}

func TestBuilderWriteRequests(t *testing.T) {
	t.Parallel()

	t.Run("insert", func(t *testing.T) {
		rec := &recorder{status: http.StatusCreated, body: `[{"id":7,"name":"ACME"}]`}
		session := newRecordingSession(t, rec)

		b, err := session.Scoped("companies")
		require.NoError(t, err)

		var rows []map[string]any
		require.NoError(t, b.Insert(map[string]any{"name": "ACME"}).Decode(context.Background(), &rows))
		require.Len(t, rows, 1)

		got := rec.request()
		require.Equal(t, http.MethodPost, got.Method)
		require.Equal(t, coselpro.DefaultSchema, got.Header.Get("Content-Profile"))
		require.Equal(t, "application/json", got.Header.Get("Content-Type"))
		require.Equal(t, "return=representation", got.Header.Get("Prefer"))
		require.JSONEq(t, `{"name":"ACME"}`, string(got.Body))
	})

	t.Run("update", func(t *testing.T) {
		rec := &recorder{body: `[]`}
		session := newRecordingSession(t, rec)

		b, err := session.Scoped("companies")
		require.NoError(t, err)

		resp, err := b.Eq("id", "7").Update(map[string]any{"name": "ACME Corp"}).Execute(context.Background())
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		got := rec.request()
		require.Equal(t, http.MethodPatch, got.Method)
		require.Equal(t, "eq.7", got.Query.Get("id"))
		require.JSONEq(t, `{"name":"ACME Corp"}`, string(got.Body))
	})

	t.Run("delete with no content", func(t *testing.T) {
		rec := &recorder{status: http.StatusNoContent}
		session := newRecordingSession(t, rec)

		b, err := session.Scoped("companies")
		require.NoError(t, err)

		target := map[string]any{"untouched": true}
		require.NoError(t, b.Eq("id", "7").Delete().Decode(context.Background(), &target))
		require.Equal(t, map[string]any{"untouched": true}, target)

		got := rec.request()
		require.Equal(t, http.MethodDelete, got.Method)
		require.Empty(t, got.Body)
	})
}

func TestBuilderRPC(t *testing.T) {
	t.Parallel()

	rec := &recorder{body: `42`}
	session := newRecordingSession(t, rec)

	b, err := session.RPC("count_companies", map[string]any{"country": "FR"})
	require.NoError(t, err)

	var n int
	require.NoError(t, b.Decode(context.Background(), &n))
	require.Equal(t, 42, n)

	got := rec.request()
	require.Equal(t, http.MethodPost, got.Method)
	require.Equal(t, "/rpc/count_companies", got.Path)
	require.Equal(t, coselpro.DefaultSchema, got.Header.Get("Content-Profile"))

	var params map[string]any
	require.NoError(t, json.Unmarshal(got.Body, &params))
	require.Equal(t, "FR", params["country"])
}

func TestBuilderGatewayError(t *testing.T) {
	t.Parallel()

	rec := &recorder{
		status: http.StatusBadRequest,
		body:   `{"code":"PGRST100","message":"failed to parse filter","details":"unexpected \"x\"","hint":null}`,
	}
	session := newRecordingSession(t, rec)

	b, err := session.Scoped("companies")
	require.NoError(t, err)

	_, err = b.Eq("id", "x").Execute(context.Background())

	var apiErr *coselpro.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "PGRST100", apiErr.Code)
	require.Equal(t, "failed to parse filter", apiErr.Message)
	require.Equal(t, `unexpected "x"`, apiErr.Details)
	require.Empty(t, apiErr.Hint)
	require.False(t, apiErr.Unauthorized())
}
