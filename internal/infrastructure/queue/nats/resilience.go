package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/trade-compliance-engine/internal/infrastructure/resilience"
)

// classifyNATSError retries connection-level failures only. Payload and
// subject errors would fail again unchanged.
var classifyNATSError = resilience.SentinelClassifier([]error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrStaleConnection,
}, nil)
