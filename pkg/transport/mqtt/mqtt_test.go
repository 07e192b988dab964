package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:   "valid config",
			config: Config{ClientID: "pos-1", PublishTopic: "up", SubscribeTopic: "down", QoS: 1},
		},
		{
			name:    "missing client id",
			config:  Config{PublishTopic: "up", SubscribeTopic: "down"},
			wantErr: ErrMissingClientID,
		},
		{
			name:    "missing topics",
			config:  Config{ClientID: "pos-1", PublishTopic: "up"},
			wantErr: ErrMissingTopics,
		},
		{
			name:    "invalid qos",
			config:  Config{ClientID: "pos-1", PublishTopic: "up", SubscribeTopic: "down", QoS: 3},
			wantErr: ErrInvalidQoS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 30*time.Second, tt.config.KeepAlive)
				assert.Equal(t, 10*time.Second, tt.config.ConnectTimeout)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestNewDialer_RejectsInvalidConfig(t *testing.T) {
	_, err := NewDialer(Config{}, nil)
	assert.Error(t, err)
}

func TestDial_UnreachableBroker(t *testing.T) {
	d, err := NewDialer(Config{
		ClientID:       "pos-test",
		PublishTopic:   "up",
		SubscribeTopic: "down",
		ConnectTimeout: 500 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = d.Dial(ctx, "tcp://127.0.0.1:1")
	assert.Error(t, err)
}
