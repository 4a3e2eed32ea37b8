package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ShardLoadsTotal.WithLabelValues("a", "backing", "ok").Inc()
	m.ShardLoadsTotal.WithLabelValues("a", "backing", "ok").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShardLoadsTotal.WithLabelValues("a", "backing", "ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shard_loads_total{shard="a",source="backing",status="ok"} 2`)
}

func TestNewTwiceWithSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
