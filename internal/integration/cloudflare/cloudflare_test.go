package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekops/unifi-reporter/internal/collector"
)

func TestIntegration_IsConfigured(t *testing.T) {
	assert.True(t, New(Config{Token: "t", ZoneID: "z"}).IsConfigured())
	assert.False(t, New(Config{Token: "t"}).IsConfigured())
	assert.False(t, New(Config{}).IsConfigured())
}

func TestIntegration_ValidateConfig_PartialCredentialsWarn(t *testing.T) {
	assert.NotEmpty(t, New(Config{Token: "t"}).ValidateConfig())
	assert.NotEmpty(t, New(Config{ZoneID: "z"}).ValidateConfig())
	assert.Empty(t, New(Config{Token: "t", ZoneID: "z"}).ValidateConfig())
}

func TestIntegration_Fetch_SumsCountsByAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(firewallEventsResponse{
			Success: true,
			Result: []struct {
				Action string `json:"action"`
				Count  int    `json:"count"`
			}{
				{Action: "block", Count: 4},
				{Action: "challenge", Count: 2},
			},
		})
	}))
	defer srv.Close()

	in := New(Config{Token: "secret", ZoneID: "zone1", BaseURL: srv.URL})
	window := collector.Window{Start: time.Now().Add(-time.Hour), End: time.Now()}

	data, err := in.Fetch(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, 6, data["total_events"])
}

func TestIntegration_Fetch_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(firewallEventsResponse{Success: false})
	}))
	defer srv.Close()

	in := New(Config{Token: "secret", ZoneID: "zone1", BaseURL: srv.URL})
	_, err := in.Fetch(context.Background(), collector.Window{})
	assert.Error(t, err)
}
