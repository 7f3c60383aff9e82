// State Store - CouchDB-backed state lookup service
//
// This is the main entry point for the state store. It serves state lookups
// over HTTP and MQTT, or answers a single lookup from the command line:
//
//	statestore                                   # serve until SIGINT/SIGTERM
//	statestore lookup <uuid> --type property     # one-shot lookup, JSON on stdout
//	statestore token --subject dashboard         # mint an API bearer token
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-statestore/internal/api"
	"github.com/nerrad567/gray-logic-statestore/internal/auth"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/couchdb"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-statestore/internal/responder"
	"github.com/nerrad567/gray-logic-statestore/internal/state"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "STATESTORE_CONFIG"
)

var (
	// errNotFound makes the lookup command exit non-zero when nothing matched.
	errNotFound = errors.New("state not found")

	errAuthDisabled = errors.New("api.auth.jwt_secret is not set")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. out receives lookup results.
func newRootCmd(out io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "statestore",
		Short:         "Serve state lookups from CouchDB over HTTP and MQTT",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"path to config.yaml (env "+configEnv+")")

	var typeName string
	lookupCmd := &cobra.Command{
		Use:   "lookup <uuid>",
		Short: "Look up one state and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return lookup(cmd.Context(), configPath, args[0], typeName, out)
		},
	}
	lookupCmd.Flags().StringVarP(&typeName, "type", "t", state.TypeState, "registered state type")
	root.AddCommand(lookupCmd)

	var (
		subject string
		ttl     time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return issueToken(configPath, subject, ttl, out)
		},
	}
	tokenCmd.Flags().StringVarP(&subject, "subject", "s", "", "token subject (required)")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
	root.AddCommand(tokenCmd)

	return root
}

// getConfigPath returns the configuration file path.
// Uses STATESTORE_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the configuration and builds the configured logger.
func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logging.New(cfg.Logging, version), nil
}

// run serves lookups until ctx is cancelled.
//
// Parameters:
//   - ctx: Context cancelled by SIGINT/SIGTERM
//   - configPath: Path to config.yaml
//
// Returns:
//   - error: nil on clean shutdown, or error describing the startup failure
func run(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log.Info("starting state store",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
		"backend", cfg.Storage.Backend,
	)

	conn := newConnection(cfg, log)
	defer func() {
		log.Info("closing document store", "connected", conn.IsConnected())
		if closeErr := conn.Close(); closeErr != nil {
			log.Error("error closing document store", "error", closeErr)
		}
	}()

	repo := state.NewRepository(conn, state.DefaultRegistry())
	repo.SetLogger(log.Component("repository"))

	// Connect eagerly so a misconfigured store fails startup rather than
	// the first lookup. Lookups still reconnect lazily afterwards.
	if err := conn.HealthCheck(ctx); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	log.Info("document store connected", "dsn", redactedTarget(cfg))

	checks := map[string]api.HealthChecker{"store": conn}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		repo.SetObserver(influxClient)
		checks["influxdb"] = influxClient
		log.Info("lookup telemetry enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		resp := responder.New(repo, mqttClient, mqttClient.Topics(), mqttClient.QoS())
		resp.SetLogger(log.Component("responder"))
		resp.SetTimeout(cfg.CouchDBTimeout())
		if err := resp.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if stopErr := resp.Stop(); stopErr != nil {
				log.Warn("error stopping MQTT responder", "error", stopErr)
			}
		}()
		checks["mqtt"] = mqttClient
		log.Info("MQTT responder listening", "topic", mqttClient.Topics().AllRequests())
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Finder:  repo,
			Checks:  checks,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// lookup runs a single FindOne and writes the result as JSON to out.
func lookup(ctx context.Context, configPath, rawID, typeName string, out io.Writer) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("%w: %q is not a UUID", state.ErrInvalidArgument, rawID)
	}

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	conn := newConnection(cfg, log)
	defer conn.Close() //nolint:errcheck // One-shot command

	repo := state.NewRepository(conn, nil)
	repo.SetLogger(log.Component("repository"))

	st, found, err := repo.FindOne(ctx, id, typeName)
	if err != nil {
		return err
	}

	result := map[string]any{"found": found, "type": typeName, "state": nil}
	if found {
		result["state"] = st.ToMap()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if !found {
		return fmt.Errorf("%w: %s", errNotFound, id)
	}
	return nil
}

// issueToken prints a states:read token signed with the configured secret.
func issueToken(configPath, subject string, ttl time.Duration, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.JWTSecret == "" {
		return errAuthDisabled
	}

	token, err := auth.IssueToken(subject, cfg.API.Auth.JWTSecret, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// newConnection builds the lazy connection handle for the configured backend.
// The sqlite backend swaps the HTTP dialer for the embedded document store.
func newConnection(cfg *config.Config, log *logging.Logger) *couchdb.Connection {
	params := couchdb.Params{
		Database: cfg.CouchDB.Database,
		Host:     cfg.CouchDB.Host,
		Port:     cfg.CouchDB.Port,
		Username: cfg.CouchDB.Username,
		Password: cfg.CouchDB.Password,
		Timeout:  cfg.CouchDBTimeout(),
	}

	opts := []couchdb.Option{couchdb.WithLogger(log.Component("connection"))}
	if cfg.Storage.Backend == config.BackendSQLite {
		sqliteCfg := database.Config{
			Path:        cfg.SQLite.Path,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		}
		opts = append(opts, couchdb.WithDialer(func(ctx context.Context, p couchdb.Params) (docstore.Store, error) {
			return database.OpenStore(ctx, sqliteCfg, p.Database)
		}))
	}

	return couchdb.NewConnection(params, opts...)
}

// redactedTarget describes the store without credentials.
func redactedTarget(cfg *config.Config) string {
	if cfg.Storage.Backend == config.BackendSQLite {
		return "sqlite://" + cfg.SQLite.Path + "/" + cfg.CouchDB.Database
	}
	return fmt.Sprintf("http://%s:%d/%s", cfg.CouchDB.Host, cfg.CouchDB.Port, cfg.CouchDB.Database)
}
