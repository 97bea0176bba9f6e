package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/metrics"
	"github.com/jrsteele09/go-auth-engine/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func newServer(t *testing.T, pinger server.Pinger) (*server.Server, *metrics.Recorder) {
	t.Helper()
	reg := prometheus.NewRegistry()
	recorder, err := metrics.New(reg)
	require.NoError(t, err)
	s, err := server.New("PROD", pinger, reg, server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return s, recorder
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s, _ := newServer(t, fakePinger{})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "ok", body["status"])
	})

	t.Run("store down", func(t *testing.T) {
		s, _ := newServer(t, fakePinger{err: errors.New("connection refused")})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Contains(t, rec.Body.String(), "connection refused")
	})

	t.Run("wrong method", func(t *testing.T) {
		s, _ := newServer(t, fakePinger{})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, server.RouteHealth, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestMetrics(t *testing.T) {
	s, recorder := newServer(t, fakePinger{})
	recorder.TokenIssued("access_token")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, server.RouteMetrics, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `authengine_tokens_issued_total{kind="access_token"} 1`))
}

func TestNewValidation(t *testing.T) {
	_, err := server.New("DEV", nil, prometheus.NewRegistry())
	require.Error(t, err)
	_, err = server.New("DEV", fakePinger{}, nil)
	require.Error(t, err)
}

func TestRecoverMiddleware(t *testing.T) {
	s, _ := newServer(t, fakePinger{})
	h := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) { panic("boom") }, s.StdMiddleware()...)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) DeleteExpired(context.Context) (int, error) {
	c.calls.Add(1)
	return 2, c.err
}

func TestRunCleanup(t *testing.T) {
	for _, failing := range []bool{false, true} {
		cleaner := &countingCleaner{}
		if failing {
			cleaner.err = errors.New("store unavailable")
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			server.RunCleanup(ctx, cleaner, time.Millisecond, zerolog.Nop())
			close(done)
		}()

		require.Eventually(t, func() bool { return cleaner.calls.Load() >= 3 }, time.Second, time.Millisecond,
			"sweeps keep running after failures: %v", failing)
		cancel()
		<-done
	}
}
