package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds the initial connection in Connect.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds waiting for a publish, subscribe or
	// unsubscribe acknowledgement.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is how long Close lets in-flight work finish,
	// in milliseconds (paho's unit).
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the PINGREQ interval; the broker drops the session
	// (and publishes the will) after 1.5x this without traffic.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the highest MQTT QoS level.
	maxQoS = 2

	// tlsMinVersion rejects brokers offering anything older than TLS 1.2.
	tlsMinVersion = tls.VersionTLS12
)

// Status values published on the status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// statusPayload is the retained body published on the status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildClientOptions creates paho options from the MQTT config.
//
// Parameters:
//   - cfg: MQTT configuration (broker, auth, reconnect delays)
//
// Returns:
//   - *pahomqtt.ClientOptions: Options ready for pahomqtt.NewClient
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	// Broker URL: ssl:// when TLS is enabled, tcp:// otherwise.
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	// Anonymous when no username is configured.
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session: the client restores its own subscriptions on reconnect,
	// so the broker does not need to keep any.
	opts.SetCleanSession(true)

	// InitialDelay paces retries of the first connection; MaxDelay caps the
	// backoff between reconnect attempts after a lost connection.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Timeouts
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT registers the offline status the broker publishes if the
// responder disappears without a clean disconnect.
//
// The will is retained on {prefix}/status, matching the online status
// published on connect, so subscribers always see the latest state.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	opts.SetWill(topics.Status(), string(buildStatusPayload(statusOffline, clientID, "unexpected_disconnect")), 1, true)
}

// buildStatusPayload encodes a status message. Reason is omitted when empty.
func buildStatusPayload(status, clientID, reason string) []byte {
	payload, err := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// statusPayload holds only strings.
		return nil
	}
	return payload
}
