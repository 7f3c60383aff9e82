package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-statestore/internal/state"
)

// defaultLookupTimeout bounds a single lookup triggered by a request.
const defaultLookupTimeout = 10 * time.Second

// ErrInvalidRequest is returned for messages outside the request topic scheme.
var ErrInvalidRequest = errors.New("responder: invalid request topic")

// Finder looks up states. state.Repository implements it.
type Finder interface {
	FindOne(ctx context.Context, id uuid.UUID, typeName string) (state.State, bool, error)
}

// Broker is the MQTT surface the responder needs. mqtt.Client implements it.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger defines the logging interface used by the Responder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Response is the JSON body published on {prefix}/response/{type}/{id}.
//
// State is null when nothing was found or the lookup failed.
type Response struct {
	Found bool           `json:"found"`
	State map[string]any `json:"state"`
	Error string         `json:"error,omitempty"`
}

// Responder answers state lookup requests received over MQTT.
//
// A request is any message on {prefix}/request/{type}/{uuid}; the payload is
// ignored. The answer is published, not retained, on the matching response
// topic.
type Responder struct {
	finder  Finder
	broker  Broker
	topics  mqtt.Topics
	qos     byte
	timeout time.Duration
	logger  Logger

	// base is the parent of every lookup context; set by Start.
	base context.Context
}

// New creates a responder publishing with the given QoS under topics.
func New(finder Finder, broker Broker, topics mqtt.Topics, qos byte) *Responder {
	return &Responder{
		finder:  finder,
		broker:  broker,
		topics:  topics,
		qos:     qos,
		timeout: defaultLookupTimeout,
		logger:  noopLogger{},
		base:    context.Background(),
	}
}

// SetLogger sets the logger for the responder.
func (r *Responder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetTimeout sets the per-request lookup timeout. Non-positive values are ignored.
func (r *Responder) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		r.timeout = timeout
	}
}

// Start subscribes to every request topic. Lookups run under ctx, so
// cancelling it aborts requests still in flight.
//
// Parameters:
//   - ctx: Parent context for every lookup, typically the service lifetime
//
// Returns:
//   - error: If the subscription fails
func (r *Responder) Start(ctx context.Context) error {
	r.base = ctx
	if err := r.broker.Subscribe(r.topics.AllRequests(), r.qos, r.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to lookup requests: %w", err)
	}
	return nil
}

// Stop unsubscribes from the request topics. Requests already being
// handled still publish their response.
func (r *Responder) Stop() error {
	return r.broker.Unsubscribe(r.topics.AllRequests())
}

// HandleMessage answers a single request. It is the mqtt.MessageHandler
// registered by Start.
//
// An unparsable topic returns ErrInvalidRequest and publishes nothing. Every
// other request gets a response, with Error set for invalid identifiers,
// unknown types and store failures.
func (r *Responder) HandleMessage(topic string, _ []byte) error {
	typeName, rawID, ok := r.topics.ParseRequest(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, topic)
	}

	resp := r.lookup(typeName, rawID)

	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response for %s: %w", rawID, err)
	}
	if err := r.broker.Publish(r.topics.Response(typeName, rawID), payload, r.qos, false); err != nil {
		return fmt.Errorf("publishing response for %s: %w", rawID, err)
	}

	r.logger.Debug("lookup request answered",
		"type", typeName,
		"id", rawID,
		"found", resp.Found,
	)
	return nil
}

func (r *Responder) lookup(typeName, rawID string) Response {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return Response{Error: fmt.Sprintf("invalid state id %q", rawID)}
	}

	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()

	st, found, err := r.finder.FindOne(ctx, id, typeName)
	if err != nil {
		r.logger.Warn("lookup request failed",
			"type", typeName,
			"id", rawID,
			slog.Group("exception", "message", err.Error()),
		)
		return Response{Error: err.Error()}
	}
	if !found {
		return Response{}
	}
	return Response{Found: true, State: st.ToMap()}
}
