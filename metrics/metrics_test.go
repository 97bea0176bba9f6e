package metrics_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := metrics.New(reg)
	require.NoError(t, err)

	r.TokenIssued("access_token")
	r.TokenIssued("access_token")
	r.TokenAuthenticated("authorization_code", metrics.ResultSuccess)
	r.CredentialAuthenticated("client_secret", false)
	r.ReplayRejected("replay")
	r.ExpiredDeleted("refresh_token", 3)
	r.ExpiredDeleted("refresh_token", 0)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 5, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			values[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	require.Equal(t, 2.0, values["authengine_tokens_issued_total"])
	require.Equal(t, 1.0, values["authengine_token_authentications_total"])
	require.Equal(t, 1.0, values["authengine_credential_authentications_total"])
	require.Equal(t, 1.0, values["authengine_replay_rejections_total"])
	require.Equal(t, 3.0, values["authengine_expired_tokens_deleted_total"])
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *metrics.Recorder
	require.NotPanics(t, func() {
		r.TokenIssued("x")
		r.TokenAuthenticated("x", metrics.ResultFailure)
		r.CredentialAuthenticated("x", true)
		r.ReplayRejected("skew")
		r.ExpiredDeleted("x", 1)
	})
}

func TestUnregistered(t *testing.T) {
	r, err := metrics.New(nil)
	require.NoError(t, err)
	require.NotPanics(t, func() { r.TokenIssued("x") })
}
