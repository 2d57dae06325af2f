package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/src/broker"
	"orderflow/src/config"
	"orderflow/src/logger"
)

func TestOpenBroker(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		mutate   func(*config.Config)
		wantType interface{}
		wantErr  string
	}{
		{
			name:     "local mode",
			mode:     LocalMode,
			wantType: &broker.MemoryBroker{},
		},
		{
			name:     "kafka mode",
			mode:     KafkaMode,
			wantType: &broker.KafkaBroker{},
		},
		{
			name:    "kafka mode without brokers",
			mode:    KafkaMode,
			mutate:  func(c *config.Config) { c.Brokers = nil },
			wantErr: "broker",
		},
		{
			name:    "unknown mode",
			mode:    Mode("pulsar"),
			wantErr: "unknown broker mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			brk, err := OpenBroker(tt.mode, cfg, logger.NewSilentLogger())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer brk.Close()
			assert.IsType(t, tt.wantType, brk)
		})
	}
}

func TestLocalModeCreatesTopic(t *testing.T) {
	cfg := config.Default()
	cfg.Partitions = 5

	lm, err := NewLocal(cfg, logger.NewSilentLogger(), nil)
	require.NoError(t, err)
	defer lm.Close()

	assert.Equal(t, 5, lm.Broker().Partitions(cfg.Topic))
}
