package usgs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is an adjustable time source for session-expiry tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"requestId":    1,
		"errorCode":    nil,
		"errorMessage": nil,
		"data":         data,
	})
	require.NoError(t, err)
}

func writeEnvelopeError(t *testing.T, w http.ResponseWriter, code, message string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"requestId":    1,
		"errorCode":    code,
		"errorMessage": message,
		"data":         nil,
	})
	require.NoError(t, err)
}

// loginClient returns a logged-in client against srv plus its clock.
func loginClient(t *testing.T, srv *httptest.Server) (*Client, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c := New(srv.URL, WithHTTPClient(srv.Client()), WithClock(clock.now))
	require.NoError(t, c.LoginToken(context.Background(), "alice", "app-token"))
	return c, clock
}

func TestNew_NormalizesEndpoint(t *testing.T) {
	assert.Equal(t, "https://example.com/api/", New("https://example.com/api").Endpoint())
	assert.Equal(t, "https://example.com/api/", New("https://example.com/api/").Endpoint())
	assert.Equal(t, DefaultEndpoint, New("").Endpoint())
}

func TestLoginToken_SendsTokenOnLaterCalls(t *testing.T) {
	var gotAuth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "app-token", body["token"])
		assert.Empty(t, r.Header.Get("X-Auth-Token"))
		writeEnvelope(t, w, "session-key-123")
	})
	mux.HandleFunc("/permissions", func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("X-Auth-Token"))
		writeEnvelope(t, w, []string{"download", "order"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	require.True(t, c.LoggedIn())

	perms, err := c.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"download", "order"}, perms)
	assert.Equal(t, "session-key-123", gotAuth.Load())
}

func TestSessionExpiry_FailsFastWithoutNetwork(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeEnvelope(t, w, []string{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, clock := loginClient(t, srv)

	clock.advance(2*time.Hour - time.Minute)
	_, err := c.Permissions(context.Background())
	require.NoError(t, err)
	before := calls.Load()

	clock.advance(2 * time.Minute)
	_, err = c.Permissions(context.Background())
	require.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, before, calls.Load(), "expired sessions must not reach the service")
	assert.False(t, c.LoggedIn())
}

func TestPost_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		code     string
		sentinel error
	}{
		{"RATE_LIMIT", ErrRateLimited},
		{"RATE_LIMIT_USER", ErrRateLimited},
		{"RATE_LIMIT_USER_DL", ErrRateLimited},
		{"AUTH_INVALID", ErrAuthExpired},
		{"AUTH_UNAUTHORIZED", ErrAuthExpired},
		{"AUTH_KEY_INVALID", ErrAuthExpired},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeEnvelopeError(t, w, tt.code, "nope")
			}))
			defer srv.Close()

			c := New(srv.URL, WithHTTPClient(srv.Client()))
			err := c.Login(context.Background(), "alice", "hunter2")
			require.ErrorIs(t, err, tt.sentinel)

			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.code, svcErr.Code)
			assert.Equal(t, "nope", svcErr.Message)
		})
	}
}

func TestPost_UnknownServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The service reports in-band errors with a 200 status.
		writeEnvelopeError(t, w, "DATASET_INVALID", "no such dataset")
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	err := c.Login(context.Background(), "alice", "hunter2")
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "DATASET_INVALID", svcErr.Code)
	assert.False(t, IsRateLimited(err))
	assert.False(t, IsAuthExpired(err))
}

func TestSceneSearch_Paging(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/scene-search", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "landsat_ot_c2_l2", req["datasetName"])
		assert.Equal(t, "summary", req["metadataType"])
		assert.EqualValues(t, 101, req["startingNumber"])
		writeEnvelope(t, w, map[string]any{
			"results": []map[string]any{
				{"entityId": "LC81", "displayId": "LC08_L2SP_1"},
				{"entityId": "LC82", "displayId": "LC08_L2SP_2"},
			},
			"recordsReturned": 2,
			"totalHits":       150,
			"startingNumber":  101,
			"nextRecord":      0,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	page, err := c.SceneSearch(context.Background(), "landsat_ot_c2_l2", 100, 101, nil)
	require.NoError(t, err)

	assert.Len(t, page.Results, 2)
	assert.Equal(t, "LC81", page.Results[0].EntityID)
	assert.Equal(t, 150, page.TotalHits)
	assert.Equal(t, 0, page.NextRecord)
}

func TestSceneListAdd_CountMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/scene-list-add", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	err := c.SceneListAdd(context.Background(), "list-1", "landsat_ot_c2_l2", []string{"LC81", "LC82"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "added 1 of 2")
}

func TestDownloadRemove_NotRemoved(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/download-remove", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, false)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	err := c.DownloadRemove(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42")
}

func TestDownloadRetrieve_Entries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/download-retrieve", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, map[string]any{
			"available": []map[string]any{
				{"downloadId": 1, "entityId": "E1", "url": "https://dl/1", "statusText": "Available"},
			},
			"requested": []map[string]any{
				{"downloadId": 2, "entityId": "E2", "statusText": "Preparing"},
			},
			"queueSize": 2,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	queue, err := c.DownloadRetrieve(context.Background(), "mylabel")
	require.NoError(t, err)

	entries := queue.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "E1", entries[0].EntityID)
	assert.Equal(t, "E2", entries[1].EntityID)
	assert.Equal(t, 2, queue.QueueSize)
}

func TestLogout_ClearsSessionEvenOnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelopeError(t, w, "SERVER_ERROR", "boom")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	require.True(t, c.LoggedIn())

	err := c.Logout(context.Background())
	require.Error(t, err)
	assert.False(t, c.LoggedIn())

	// A second logout is a no-op.
	require.NoError(t, c.Logout(context.Background()))
}

func TestFetchResource_StatusMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login-token", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, "key")
	})
	mux.HandleFunc("/res/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Auth-Token"))
		_, _ = io.WriteString(w, "payload")
	})
	mux.HandleFunc("/res/forbidden", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/res/throttled", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := loginClient(t, srv)
	ctx := context.Background()

	resp, err := c.FetchResource(ctx, srv.URL+"/res/ok")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "payload", string(body))

	_, err = c.FetchResource(ctx, srv.URL+"/res/forbidden")
	require.ErrorIs(t, err, ErrAuthExpired)

	_, err = c.FetchResource(ctx, srv.URL+"/res/throttled")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestFetchResource_RequiresLogin(t *testing.T) {
	c := New("https://example.com/")
	_, err := c.FetchResource(context.Background(), "https://example.com/res")
	require.ErrorIs(t, err, ErrNotLoggedIn)
}
