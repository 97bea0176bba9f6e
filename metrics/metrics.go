package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authengine"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Recorder holds the engine's counters. A nil *Recorder records nothing, so
// components can take one unconditionally.
type Recorder struct {
	tokensIssued        *prometheus.CounterVec
	tokenAuths          *prometheus.CounterVec
	credentialAuths     *prometheus.CounterVec
	replayRejections    *prometheus.CounterVec
	expiredTokensPurged *prometheus.CounterVec
}

// New creates the counters and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Codes and tokens issued, by kind.",
		}, []string{"kind"}),
		tokenAuths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_authentications_total",
			Help:      "Code and token validations, by kind and result.",
		}, []string{"kind", "result"}),
		credentialAuths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_authentications_total",
			Help:      "Client and user credential checks, by scheme and result.",
		}, []string{"scheme", "result"}),
		replayRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_rejections_total",
			Help:      "Signed requests rejected by the replay guard, by reason.",
		}, []string{"reason"}),
		expiredTokensPurged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_tokens_deleted_total",
			Help:      "Expired codes and tokens removed from storage, by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			r.tokensIssued, r.tokenAuths, r.credentialAuths, r.replayRejections, r.expiredTokensPurged,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Recorder) TokenIssued(kind string) {
	if r == nil {
		return
	}
	r.tokensIssued.WithLabelValues(kind).Inc()
}

func (r *Recorder) TokenAuthenticated(kind, result string) {
	if r == nil {
		return
	}
	r.tokenAuths.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) CredentialAuthenticated(scheme string, success bool) {
	if r == nil {
		return
	}
	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	r.credentialAuths.WithLabelValues(scheme, result).Inc()
}

func (r *Recorder) ReplayRejected(reason string) {
	if r == nil {
		return
	}
	r.replayRejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) ExpiredDeleted(kind string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.expiredTokensPurged.WithLabelValues(kind).Add(float64(count))
}
