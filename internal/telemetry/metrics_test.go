package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InstrumentsAreRecordableAndExposedOverHTTP(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RecordRun(context.Background(), "success", 1.25)
	m.RecordFinding(context.Background(), "high")
	m.RecordCollectorError(context.Background(), "rest")
	m.RecordIntegrationFailure(context.Background(), "cloudflare")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_ExposedMetricsIncludeDeclaredInstrumentNames(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RecordRun(context.Background(), "success", 0.5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])

	assert.True(t, strings.Contains(body, "unifi_reporter_runs_total"))
}
