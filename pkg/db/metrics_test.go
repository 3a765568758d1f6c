package db

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "dupdetect", "dupdetect")

	ch := make(chan *prometheus.Desc, 10)
	go func() {
		collector.Describe(ch)
		close(ch)
	}()

	var descs []string
	for desc := range ch {
		descs = append(descs, desc.String())
	}
	require.Len(t, descs, 4)

	expectedNames := []string{
		"dupdetect_db_pool_total_conns",
		"dupdetect_db_pool_idle_conns",
		"dupdetect_db_pool_acquired_conns",
		"dupdetect_db_pool_max_conns",
	}
	for i, name := range expectedNames {
		assert.True(t, strings.Contains(descs[i], name), "descriptor %d: %s", i, descs[i])
	}
}

func TestPoolStatsCollector_Collect_NilPool(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "dupdetect", "dupdetect")

	ch := make(chan prometheus.Metric, 10)
	go func() {
		collector.Collect(ch)
		close(ch)
	}()

	count := 0
	for range ch {
		count++
	}
	assert.Equal(t, 0, count, "nil pool should yield no metrics")
}

func TestRegisterPoolStatsCollector_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := RegisterPoolStatsCollector(reg, nil, "dupdetect", "dupdetect")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := RegisterPoolStatsCollector(reg, nil, "dupdetect", "dupdetect")
	require.NoError(t, err)
	require.NotNil(t, second)
}
