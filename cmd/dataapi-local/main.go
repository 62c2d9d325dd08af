// Command dataapi-local serves the Data API over HTTP on top of a local
// database, so applications written against the managed service can run
// against SQLite, Postgres or MySQL during development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomyedwab/rdsdataapi/host"
)

const shutdownTimeout = 10 * time.Second

type config struct {
	addr           string
	driver         string
	dsn            string
	resourceArn    string
	secretArn      string
	database       string
	signingKeyFile string
	tlsCert        string
	tlsKey         string
	audit          bool
}

// loadConfig parses flags, falling back to DATAAPI_* environment variables
// for anything not given on the command line.
func loadConfig(args []string, getenv func(string) string) (*config, error) {
	envOr := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	auditDefault := false
	if v := getenv("DATAAPI_AUDIT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DATAAPI_AUDIT value %q: %w", v, err)
		}
		auditDefault = b
	}

	cfg := &config{}
	fs := flag.NewFlagSet("dataapi-local", flag.ContinueOnError)
	fs.StringVar(&cfg.addr, "addr", envOr("DATAAPI_ADDR", ":8080"), "Address to listen on")
	fs.StringVar(&cfg.driver, "driver", envOr("DATAAPI_DRIVER", host.BackendSQLite3), "Backend driver: "+strings.Join(host.Backends, ", "))
	fs.StringVar(&cfg.dsn, "dsn", envOr("DATAAPI_DSN", ""), "Backend data source name; empty opens an in-memory SQLite database")
	fs.StringVar(&cfg.resourceArn, "resource-arn", envOr("DATAAPI_RESOURCE_ARN", ""), "Only accept requests for this resource ARN")
	fs.StringVar(&cfg.secretArn, "secret-arn", envOr("DATAAPI_SECRET_ARN", ""), "Only accept requests with this secret ARN")
	fs.StringVar(&cfg.database, "database", envOr("DATAAPI_DATABASE", ""), "Only accept requests for this database")
	fs.StringVar(&cfg.signingKeyFile, "signing-key-file", envOr("DATAAPI_SIGNING_KEY_FILE", ""), "File holding the key request tokens must be signed with")
	fs.StringVar(&cfg.tlsCert, "tls-cert", envOr("DATAAPI_TLS_CERT", ""), "Certificate file; serves HTTPS together with -tls-key")
	fs.StringVar(&cfg.tlsKey, "tls-key", envOr("DATAAPI_TLS_KEY", ""), "Private key file for -tls-cert")
	fs.BoolVar(&cfg.audit, "audit", auditDefault, "Record transaction events in the dataapi_audit table")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.dsn == "" && cfg.driver != host.BackendSQLite3 && cfg.driver != host.BackendSQLite {
		return nil, fmt.Errorf("-dsn is required for the %s backend", cfg.driver)
	}
	if (cfg.tlsCert == "") != (cfg.tlsKey == "") {
		return nil, errors.New("-tls-cert and -tls-key must be given together")
	}
	return cfg, nil
}

func (c *config) hostOptions(logger *slog.Logger) ([]host.Option, error) {
	opts := []host.Option{
		host.WithLogger(logger),
		host.WithIdentity(c.resourceArn, c.secretArn, c.database),
	}
	if c.signingKeyFile != "" {
		key, err := os.ReadFile(c.signingKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
		key = []byte(strings.TrimSpace(string(key)))
		if len(key) == 0 {
			return nil, fmt.Errorf("signing key file %s is empty", c.signingKeyFile)
		}
		opts = append(opts, host.WithSigningKey(key))
	}
	if c.audit {
		opts = append(opts, host.WithAudit())
	}
	return opts, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(cfg *config, logger *slog.Logger) error {
	db, err := host.Open(cfg.driver, cfg.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	opts, err := cfg.hostOptions(logger)
	if err != nil {
		return err
	}
	h, err := host.New(db, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Data API server", "address", cfg.addr, "driver", cfg.driver, "tls", cfg.tlsCert != "", "audit", cfg.audit)
		var err error
		if cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down, rolling back open transactions", "openTransactions", h.OpenTransactions())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		return errors.Join(err, h.Close())
	})
	return g.Wait()
}
