package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekops/unifi-reporter/internal/collector"
)

func TestCollector_CollectsEventsAndAlarmsWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	inWindow := now.Add(-time.Minute).Format(time.RFC3339)
	outOfWindow := now.Add(-time.Hour).Format(time.RFC3339)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth/login":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/s/default/stat/event":
			writeEnvelope(w, nil, []map[string]any{
				{"time": inWindow, "key": "EVT_WU_Roam"},
				{"time": outOfWindow, "key": "EVT_WU_Roam"},
			})
		case r.URL.Path == "/api/s/default/list/alarm":
			writeEnvelope(w, nil, []map[string]any{
				{"time": inWindow, "key": "EVT_IPS_IpsAlert"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Username: "admin", Password: "secret"}, nil)

	entries, err := c.Collect(t.Context(), collector.Window{Start: now.Add(-5 * time.Minute), End: now})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCollector_PaginationTruncationIsLoggedButNotFatal(t *testing.T) {
	reportedCount := 5 // server claims 5 are available; only 1 is returned
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			w.WriteHeader(http.StatusOK)
		case "/api/s/default/stat/event":
			writeEnvelope(w, &reportedCount, []map[string]any{
				{"time": time.Now().UTC().Format(time.RFC3339), "key": "EVT_WU_Roam"},
			})
		case "/proxy/network/api/self":
			http.NotFound(w, r)
		default:
			writeEnvelope(w, nil, nil)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Username: "admin", Password: "secret"}, nil)
	entries, err := c.Collect(t.Context(), collector.Window{Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCollector_ReauthenticatesOnceOn401(t *testing.T) {
	var events int32
	loginCalls := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			atomic.AddInt32(&loginCalls, 1)
			w.WriteHeader(http.StatusOK)
		case "/api/s/default/stat/event":
			if atomic.AddInt32(&events, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeEnvelope(w, nil, nil)
		case "/proxy/network/api/self":
			http.NotFound(w, r)
		default:
			writeEnvelope(w, nil, nil)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Username: "admin", Password: "secret", MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, nil)
	_, err := c.Collect(t.Context(), collector.Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loginCalls))
}

func TestCollector_RetriesTransientServerErrorsThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			w.WriteHeader(http.StatusOK)
		case "/api/s/default/stat/event":
			if atomic.AddInt32(&attempts, 1) < 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			writeEnvelope(w, nil, nil)
		case "/proxy/network/api/self":
			http.NotFound(w, r)
		default:
			writeEnvelope(w, nil, nil)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Username: "admin", Password: "secret", MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, nil)
	_, err := c.Collect(t.Context(), collector.Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
}

func TestCollector_AuthenticationFailureSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEnvelope(w, nil, nil)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Username: "admin", Password: "wrong"}, nil)
	_, err := c.Collect(t.Context(), collector.Window{Start: time.Now().Add(-time.Hour), End: time.Now()})
	require.Error(t, err)
}

func writeEnvelope(w http.ResponseWriter, count *int, data []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	env := envelope{Data: data}
	env.Meta.Count = count
	_ = json.NewEncoder(w).Encode(env)
}
