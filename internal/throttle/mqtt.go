package throttle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/trainlink-org/shared-lib/internal/infrastructure/metrics"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/mqtt"
	"github.com/trainlink-org/shared-lib/internal/loco"
)

// Broker is the part of the MQTT client the bridge uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishRetained(topic string, payload []byte) error
}

// Bridge connects the hub to MQTT. Commands arrive on
// {prefix}/loco/{identifier}/command and every throttle change is published
// retained on {prefix}/loco/{address}/state.
type Bridge struct {
	hub    *Hub
	broker Broker
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// NewBridge creates a bridge. It does nothing until Start.
func NewBridge(hub *Hub, broker Broker, topics mqtt.Topics, qos byte) *Bridge {
	return &Bridge{
		hub:    hub,
		broker: broker,
		topics: topics,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// Start subscribes to loco commands, registers the bridge as a hub sink
// and publishes the current state of every loco.
func (b *Bridge) Start(registry *loco.Registry) error {
	if err := b.broker.Subscribe(b.topics.AllLocoCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to loco commands: %w", err)
	}
	b.hub.AddSink(b)

	for _, l := range registry.ListAll() {
		b.ThrottleChanged(loco.ThrottleOf(l))
	}
	b.logger.Info("mqtt throttle bridge started",
		"commands", b.topics.AllLocoCommands(), "locos", registry.Len())
	return nil
}

// Stop unsubscribes from loco commands.
func (b *Bridge) Stop() error {
	if err := b.broker.Unsubscribe(b.topics.AllLocoCommands()); err != nil {
		return fmt.Errorf("unsubscribing from loco commands: %w", err)
	}
	return nil
}

// ThrottleChanged implements Sink by publishing t retained.
func (b *Bridge) ThrottleChanged(t loco.Throttle) {
	payload, err := json.Marshal(t)
	if err != nil {
		b.logger.Error("encoding throttle state", "address", t.LocoAddress, "error", err)
		return
	}
	if err := b.broker.PublishRetained(b.topics.LocoState(t.LocoAddress), payload); err != nil {
		b.logger.Warn("publishing throttle state failed", "address", t.LocoAddress, "error", err)
	}
}

// handleCommand applies one command message. Malformed and unresolved
// commands are logged and dropped; the returned error is only logged by
// the MQTT client.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	token, ok := b.topics.LocoIdentifier(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidCommand, topic)
	}
	id := loco.ParseIdentifier(token)

	cmd, err := DecodeCommand(payload)
	if err != nil {
		b.logger.Warn("dropping malformed loco command", "loco", id.String(), "error", err)
		return nil
	}

	if _, err := b.hub.Apply(metrics.TransportMQTT, id, cmd); err != nil {
		if errors.Is(err, loco.ErrNotFound) {
			b.logger.Warn("dropping command for unknown loco", "loco", id.String())
			return nil
		}
		return err
	}
	return nil
}
