package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUBSCRIBED_TOPICS", "")
	cfg := Load("order-service")

	assert.Equal(t, "order-service", cfg.ServiceName)
	assert.Equal(t, "order-service", cfg.ConsumerGroup)
	assert.Equal(t, []string{"localhost:9092"}, cfg.BootstrapEndpoints)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 5*time.Second, cfg.LockDuration())
	assert.Equal(t, 15, cfg.OrderExpiryDefaultMinutes)
	assert.Nil(t, cfg.SubscribedTopics)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("SUBSCRIBED_TOPICS", "users.status-changed, orders.created")
	t.Setenv("MAX_RETRIES", "9")
	cfg := Load("order-service")

	assert.Equal(t, []string{"users.status-changed", "orders.created"}, cfg.SubscribedTopics)
	assert.Equal(t, 9, cfg.MaxRetries)
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a ,, b "))
	assert.Nil(t, splitCSV(""))
}
