package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/vince/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	// Each instance owns its registry, so constructing twice must not panic.
	a := metrics.New()
	b := metrics.New()

	a.RecordLogin(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LoginsTotal.WithLabelValues("success")))
}

func TestRecorders(t *testing.T) {
	m := metrics.New()

	m.RecordValidation(metrics.ResultValid)
	m.RecordValidation(metrics.ResultValid)
	m.RecordValidation(metrics.ResultSecretMismatch)
	m.RecordCredentialOperation("api_key_rotate")
	m.RecordLogin(false)
	m.RecordRateLimitBlock("validate")
	m.RecordHTTPRequest("POST", "/api/validate", "200", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues(metrics.ResultValid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues(metrics.ResultSecretMismatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CredentialOperationsTotal.WithLabelValues("api_key_rotate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitBlocksTotal.WithLabelValues("validate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/validate", "200")))
}

func TestHandler_Exposition(t *testing.T) {
	m := metrics.New()
	m.RecordValidation(metrics.ResultUnknownKey)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `vince_validations_total{result="unknown_key"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
