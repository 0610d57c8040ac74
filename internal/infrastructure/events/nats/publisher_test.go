package nats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/haldanelabs/dlcore/internal/config"
	domainevents "github.com/haldanelabs/dlcore/internal/domain/events"
	"github.com/haldanelabs/dlcore/internal/infrastructure/events/nats"
)

func testConfig(clientID string) *config.Config {
	return &config.Config{
		NATS: config.NATSConfig{
			URL:           "nats://localhost:4222",
			ClientID:      clientID,
			DurableName:   "test-durable",
			MaxReconnect:  5,
			ReconnectWait: time.Second,
		},
	}
}

func TestPublisher_PublishEvent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	client, cleanup, err := nats.NewClient(testConfig("test-publisher"), logger)
	if err != nil {
		t.Skip("NATS not available:", err)
	}
	defer cleanup()

	publisher := nats.NewPublisher(client, logger)

	event := domainevents.NewTaskCreated("0123456789abcdef0123456789abcdef01234567", "Magnet")

	err = publisher.PublishEvent(context.Background(), event)
	require.NoError(t, err)
}

