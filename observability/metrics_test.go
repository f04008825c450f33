package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMethods(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLogin(OutcomeSuccess)
	m.RecordLogin(OutcomeSuccess)
	m.RecordLogin(OutcomeInvalidCredentials)
	m.RecordRegistration(OutcomeConflict)
	m.RecordPasswordReset("request", OutcomeDeliveryFailed)
	m.RecordSwept(3)
	m.RecordSwept(0)
	m.RecordDenied(http.StatusForbidden)

	assert.InDelta(t, 2, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(OutcomeInvalidCredentials)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(OutcomeConflict)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PasswordResetsTotal.WithLabelValues("request", OutcomeDeliveryFailed)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ResetTokensSwept), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthenticatedDenials.WithLabelValues("Forbidden")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLogin(OutcomeSuccess)
		m.RecordRegistration(OutcomeSuccess)
		m.RecordPasswordReset("reset", OutcomeSuccess)
		m.RecordSwept(1)
		m.RecordDenied(http.StatusUnauthorized)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.RecordLogin(OutcomeSuccess)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ficticia_auth_logins_total{outcome="success"} 1`)
}
