package database

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")
	require.NotNil(t, c)

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	assert.Len(t, names, 7)
	assert.Contains(t, names[0], "packstore_db_pool_acquired_connections")
}

func TestRegisterPoolMetrics_RejectsDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, nil, "storefront"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "storefront"))
}
