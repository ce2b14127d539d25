package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/nerrad567/incoming-webhook/internal/infrastructure/config"
)

const listenerID = "tcp"

// Errors returned by the embedded broker.
var (
	// ErrClosed is returned when publishing after Close.
	ErrClosed = errors.New("broker: closed")

	// ErrInvalidTopic is returned for an empty topic or filter.
	ErrInvalidTopic = errors.New("broker: topic cannot be empty")
)

// Handler receives messages delivered to an inline subscription.
type Handler func(topic string, payload []byte)

// Broker wraps a mochi MQTT server with an inline publisher.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Broker struct {
	server  *mochi.Server
	address string

	nextSubID atomic.Int32

	closeOnce sync.Once
	closed    atomic.Bool
}

// Options configures New.
type Options struct {
	// Address is the TCP listen address, e.g. ":1883". Empty disables the listener.
	Address string

	// Username and Password, when Username is set, are required of network clients.
	Username string
	Password string

	Logger *slog.Logger
}

// OptionsFromConfig maps the mqtt config section onto broker Options.
func OptionsFromConfig(cfg config.MQTTConfig, logger *slog.Logger) Options {
	return Options{
		Address:  cfg.Embedded.Address,
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		Logger:   logger,
	}
}

// New creates and starts the embedded broker.
//
// Parameters:
//   - opts: listener, credentials and logger
//
// Returns:
//   - *Broker: running broker
//   - error: if a hook or the listener cannot be attached
func New(opts Options) (*Broker, error) {
	mochiOpts := &mochi.Options{InlineClient: true}
	if opts.Logger != nil {
		mochiOpts.Logger = opts.Logger
	}
	server := mochi.New(mochiOpts)

	if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger(opts)}); err != nil {
		return nil, fmt.Errorf("adding auth hook: %w", err)
	}

	if opts.Address != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: listenerID, Address: opts.Address})
		if err := server.AddListener(tcp); err != nil {
			return nil, fmt.Errorf("adding listener on %s: %w", opts.Address, err)
		}
	}

	// Serve starts the listener loops and returns.
	if err := server.Serve(); err != nil {
		return nil, fmt.Errorf("starting broker: %w", err)
	}

	return &Broker{server: server, address: opts.Address}, nil
}

// ledger builds the auth rules. Inline publishes bypass auth.
func ledger(opts Options) *auth.Ledger {
	if opts.Username == "" {
		return &auth.Ledger{
			Auth: auth.AuthRules{{Allow: true}},
		}
	}
	return &auth.Ledger{
		Auth: auth.AuthRules{
			{Username: auth.RString(opts.Username), Password: auth.RString(opts.Password), Allow: true},
		},
		ACL: auth.ACLRules{
			// Network clients may read everything but only the service writes.
			{Filters: auth.Filters{"#": auth.ReadOnly}},
		},
	}
}

// Address returns the configured TCP listen address, or "" when inline only.
func (b *Broker) Address() string {
	return b.address
}

// Publish delivers a message through the inline client.
// The signature matches mqtt.Client.Publish so either can back a sink.
func (b *Broker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if topic == "" {
		return ErrInvalidTopic
	}
	if err := b.server.Publish(topic, payload, retained, qos); err != nil {
		return fmt.Errorf("broker publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers an inline subscription and returns a function that removes it.
func (b *Broker) Subscribe(filter string, handler Handler) (func(), error) {
	if filter == "" {
		return nil, ErrInvalidTopic
	}

	id := int(b.nextSubID.Add(1))
	err := b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		handler(pk.TopicName, pk.Payload)
	})
	if err != nil {
		return nil, fmt.Errorf("broker subscribe %s: %w", filter, err)
	}

	return func() {
		_ = b.server.Unsubscribe(filter, id) //nolint:errcheck // Unknown subscriptions are ignored
	}, nil
}

// HealthCheck reports ErrClosed after Close.
func (b *Broker) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("broker health check: %w", err)
	}
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close stops listeners and disconnects clients.
func (b *Broker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		err = b.server.Close()
	})
	return err
}
