package couchdb

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// Connection defaults.
const (
	// DefaultDatabase is the database used when none is configured.
	DefaultDatabase = "state_storage"

	// DefaultHost is the loopback address CouchDB listens on by default.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the CouchDB HTTP port.
	DefaultPort = 5984

	// DefaultTimeout bounds each HTTP request to CouchDB.
	DefaultTimeout = 10 * time.Second
)

// Params holds the connection parameters for a CouchDB database.
//
// Username and Password are optional; nil means "not configured".
type Params struct {
	Database string
	Host     string
	Port     int
	Username *string
	Password *string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// DSN derives the server URI from the parameters.
//
// Credentials are joined with a colon and embedded in the authority. When only
// one half of the pair is present the separator still appears exactly once.
func (p Params) DSN() string {
	var creds string
	hasCreds := false

	if p.Username != nil {
		creds += escapeUserinfo(*p.Username) + ":"
		hasCreds = true
	}
	if p.Password != nil {
		creds += ":" + escapeUserinfo(*p.Password)
		hasCreds = true
	}
	if hasCreds {
		creds = strings.Replace(creds, "::", ":", 1) + "@"
	}

	return "http://" + creds + net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// escapeUserinfo percent-encodes a credential for the URI authority.
func escapeUserinfo(s string) string {
	return url.User(s).String()
}

// Dialer creates a store client for the given parameters.
// It must not perform the database existence check; Connection does that.
type Dialer func(ctx context.Context, params Params) (docstore.Store, error)

// Logger is the logging interface used by Connection.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger used to report connection failures.
func WithLogger(logger Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithDialer replaces the default HTTP dialer.
//
// Used to back the connection with another docstore.Store implementation
// (embedded SQLite, test doubles).
func WithDialer(dial Dialer) Option {
	return func(c *Connection) {
		c.dial = dial
	}
}

// Connection is the long-lived connection handle for one database.
//
// It exclusively owns the store client it creates; the client lives until
// Close is called.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Connection struct {
	params Params
	dial   Dialer
	logger Logger

	mu    sync.Mutex
	store docstore.Store
}

// NewConnection creates a connection handle. No network activity happens
// until Client is called.
//
// Parameters:
//   - params: Connection parameters (copied; immutable afterwards)
//   - opts: Optional logger and dialer
//
// Returns:
//   - *Connection: Handle ready for lazy use
func NewConnection(params Params, opts ...Option) *Connection {
	if params.Timeout <= 0 {
		params.Timeout = DefaultTimeout
	}
	params.Username = cloneString(params.Username)
	params.Password = cloneString(params.Password)

	c := &Connection{
		params: params,
		dial:   DialHTTP,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the configured host.
func (c *Connection) Host() string {
	return c.params.Host
}

// Port returns the configured port.
func (c *Connection) Port() int {
	return c.params.Port
}

// Username returns the configured username, or nil.
func (c *Connection) Username() *string {
	return cloneString(c.params.Username)
}

// Password returns the configured password, or nil.
func (c *Connection) Password() *string {
	return cloneString(c.params.Password)
}

// Database returns the configured database name.
func (c *Connection) Database() string {
	return c.params.Database
}

// DSN returns the server URI derived from the parameters.
func (c *Connection) DSN() string {
	return c.params.DSN()
}

// Client returns the connected store client, creating it on first use.
//
// On the first successful call it dials the store, checks that the database
// exists and creates it if it does not. Later calls return the memoized
// client without any network activity. A failure is logged, nothing is
// cached and the next call retries.
//
// Parameters:
//   - ctx: Context for timeout/cancellation of the initial handshake
//
// Returns:
//   - docstore.Store: Ready store client
//   - error: ErrConnectionFailed wrapping the underlying cause
func (c *Connection) Client(ctx context.Context) (docstore.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}

	store, err := c.connect(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("could not connect to database",
				"type", "connection",
				"action", "get_client",
				"database", c.params.Database,
				slog.Group("exception",
					"message", err.Error(),
					"code", docstore.ErrorCode(err),
				),
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.store = store
	return store, nil
}

// connect dials the store and makes sure the database exists.
func (c *Connection) connect(ctx context.Context) (docstore.Store, error) {
	store, err := c.dial(ctx, c.params)
	if err != nil {
		return nil, err
	}

	exists, err := store.DatabaseExists(ctx)
	if err == nil && !exists {
		err = store.CreateDatabase(ctx)
	}
	if err != nil {
		closeStore(store)
		return nil, err
	}

	return store, nil
}

// IsConnected reports whether a client has been created. It is a diagnostic
// and never dials; use HealthCheck to probe the store.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store != nil
}

// HealthCheck verifies the store is reachable.
//
// It initialises the client if needed and pings the server when the store
// supports it.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Connection) HealthCheck(ctx context.Context) error {
	store, err := c.Client(ctx)
	if err != nil {
		return err
	}
	if pinger, ok := store.(docstore.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("couchdb health check failed: %w", err)
		}
	}
	return nil
}

// Close releases the memoized client. The handle may be reused afterwards;
// the next Client call connects again.
//
// Returns:
//   - error: If the underlying store fails to close
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil
	}

	store := c.store
	c.store = nil

	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing store: %w", err)
		}
	}
	return nil
}

// closeStore closes a store that failed its handshake.
func closeStore(store docstore.Store) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close() //nolint:errcheck // Best effort cleanup on error path
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
