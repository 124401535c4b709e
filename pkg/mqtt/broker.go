// Package mqtt embeds an MQTT broker so external tools can subscribe
// to gripper telemetry without extra infrastructure.
package mqtt

import (
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/grasplab/go-gripper/internal/log"
)

// Broker wraps an embedded mochi-mqtt server with an inline client
// for local publishing.
type Broker struct {
	server *mochi.Server
	addr   string
}

// NewBroker creates a broker listening on addr (e.g. ":1883").
func NewBroker(addr string) *Broker {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
	})
	return &Broker{
		server: server,
		addr:   addr,
	}
}

// Start attaches the TCP listener and serves in the background.
func (b *Broker) Start() error {
	// Telemetry is read-only for subscribers; no credentials needed
	// on the local broker.
	if err := b.server.AddHook(new(auth.AllowHook), nil); err != nil {
		return err
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "gripper-tcp", Address: b.addr})
	if err := b.server.AddListener(tcp); err != nil {
		return err
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			log.Error("mqtt broker stopped", "error", err)
		}
	}()

	log.Info("mqtt broker listening", "addr", b.addr)
	return nil
}

// Publish publishes a retained message through the inline client.
func (b *Broker) Publish(topic string, payload []byte) error {
	return b.server.Publish(topic, payload, true, 0)
}

// Close shuts the broker down.
func (b *Broker) Close() error {
	return b.server.Close()
}
