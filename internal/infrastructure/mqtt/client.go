package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the state store's request/response traffic.
//
// It owns the broker session, the retained online/offline status on
// {prefix}/status, and the set of subscriptions to replay after a reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are restored after every reconnect.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	// subscriptions are replayed by handleConnect, keyed by topic filter.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected is the last state reported by paho's callbacks.
	connected bool
	connMu    sync.RWMutex

	// Optional connection callbacks (SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// Optional logger (SetLogger). Nil discards.
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the optional logger for handler failures and reconnects.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription is a recorded Subscribe call.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is invoked for every message on a subscribed topic.
//
// Handlers run on paho's goroutines and should not block for long.
//
// Parameters:
//   - topic: The concrete topic the message arrived on (wildcards expanded)
//   - payload: The raw message payload
//
// Returns:
//   - error: Logged at warn level; does not affect acknowledgement
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds paho options from config (broker URL, auth, TLS, reconnect delays)
//  2. Registers the offline last will on {prefix}/status
//  3. Waits up to defaultConnectTimeout for the first connection
//  4. On success, paho's connect callback publishes the retained online status
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectionFailed if the broker is not reachable in time
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		topics:        Topics{Prefix: cfg.TopicPrefix},
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)

	// paho invokes these on its own goroutines.
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, o *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("mqtt reconnecting", "brokers", len(o.Servers), "client_id", o.ClientID)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	if err := awaitToken(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		// ConnectRetry keeps dialling in the background; stop it so a failed
		// Connect leaves nothing running.
		c.client.Disconnect(0)
		return nil, err
	}

	// The connect callback may not have run yet. Mark the state here so
	// IsConnected is true as soon as Connect returns.
	c.setConnected(true)

	return c, nil
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS) // #nosec G115 -- validated to 0..2 by config
}

// handleConnect runs on the first connect and every reconnect.
func (c *Client) handleConnect() {
	c.setConnected(true)

	// Clean sessions lose subscriptions; put them back before announcing
	// that the responder is online.
	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect runs when paho reports a lost connection. Reconnection
// is automatic.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions replays every recorded subscription. Failures are
// logged and the subscription stays recorded for the next reconnect.
func (c *Client) restoreSubscriptions() {
	for _, sub := range c.snapshotSubscriptions() {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if err := awaitToken(token, defaultOperationTimeout, ErrSubscribeFailed); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("mqtt resubscribe failed", "topic", sub.topic, "error", err)
			}
		}
	}
}

// publishStatus publishes a retained status message on {prefix}/status.
// The returned token is ignored on connect and awaited on Close.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(status, c.cfg.Broker.ClientID, reason)
	return c.client.Publish(c.topics.Status(), c.QoS(), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes a graceful offline status (distinct from the will's reason)
//  2. Waits briefly for that publish
//  3. Disconnects, letting in-flight work finish within the quiesce period
//
// Close is safe on a nil or never-connected client.
//
// Returns:
//   - error: Always nil; a broker that is already gone is not an error
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(statusOffline, "graceful_shutdown").WaitTimeout(defaultOperationTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck reports whether the client is connected.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil if connected, ErrNotConnected otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state. Both the callback
// state and paho's own view must agree.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

func (c *Client) setConnected(connected bool) {
	c.connMu.Lock()
	c.connected = connected
	c.connMu.Unlock()
}

// SetOnConnect sets a callback invoked on the initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
// The error describes why.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for handler errors, panics and reconnects.
// Without one these are discarded.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho. A panicking handler is
// recovered and logged so it cannot take down paho's router goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("mqtt handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("mqtt handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}

// awaitToken waits for a paho token and maps the outcome onto failure.
//
// Parameters:
//   - token: Token returned by a paho call
//   - timeout: Maximum wait
//   - failure: Sentinel wrapped into the returned error
//
// Returns:
//   - error: nil on success; failure wrapped with "timeout after" or the
//     broker's error otherwise
func awaitToken(token pahomqtt.Token, timeout time.Duration, failure error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", failure, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", failure, err)
	}
	return nil
}
