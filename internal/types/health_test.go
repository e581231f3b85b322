package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthStatus(t *testing.T) {
	tests := []struct {
		status  HealthStatus
		state   HealthState
		healthy bool
	}{
		{Healthy("42 chunks"), HealthStateHealthy, true},
		{Degraded("index has not been built"), HealthStateDegraded, false},
		{Unhealthy("manifest unreadable"), HealthStateUnhealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.state, tt.status.State)
			assert.Equal(t, tt.healthy, tt.status.IsHealthy())
			assert.False(t, tt.status.CheckedAt.IsZero())

			data, err := json.Marshal(tt.status)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"state":"`+tt.state.String()+`"`)
		})
	}
}
