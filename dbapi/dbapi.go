// Package dbapi is a synchronous database client over the stateless Data API.
//
// A Connection carries the resource, secret and database identifiers plus at
// most one transaction token. Without a token every statement autocommits;
// Begin obtains a token which is then attached to every statement until
// Commit or Rollback clears it. A Cursor executes statements and buffers one
// result, which the Fetch methods consume from the front.
//
//	conn, err := dbapi.Connect(resourceArn, secretArn, "app")
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	cur := conn.Cursor()
//	if err := cur.Execute(ctx, "SELECT id, name FROM users WHERE id = :id", map[string]any{"id": 7}); err != nil {
//		return err
//	}
//	rows, err := cur.FetchAll()
//
// Statements use named placeholders only (ParamStyle). Parameter values are
// converted by package codec.
//
// Connections and cursors are meant for a single goroutine; use one
// Connection per concurrent worker.
package dbapi

import (
	"log/slog"

	"github.com/tomyedwab/rdsdataapi/service"
)

const (
	// APILevel is the client contract version implemented.
	APILevel = "2.0"
	// ThreadSafety 1 means goroutines may share the package but not
	// connections.
	ThreadSafety = 1
	// ParamStyle declares named placeholders, e.g. WHERE id = :id.
	ParamStyle = "named"
)

type config struct {
	svc    service.Service
	region string
	logger *slog.Logger
}

// Option configures a Connection.
type Option func(*config)

// WithService sets the transport used for remote calls.
func WithService(svc service.Service) Option {
	return func(c *config) {
		c.svc = svc
	}
}

// WithRegion sets the AWS region of the default transport. It has no effect
// together with WithService.
func WithRegion(region string) Option {
	return func(c *config) {
		c.region = region
	}
}

// WithLogger sets the logger used for debug output. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Connect returns a Connection to the given database. No remote call is made.
// Unless WithService is given, requests go through the AWS SDK using the
// default credential chain.
func Connect(resourceArn, secretArn, database string, opts ...Option) (*Connection, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	if cfg.svc == nil {
		client, err := service.NewAWSClientFromSession(cfg.region)
		if err != nil {
			return nil, wrapError(KindOperationalError, "failed to create service client", err)
		}
		cfg.svc = client
	}

	return &Connection{
		resourceArn: resourceArn,
		secretArn:   secretArn,
		database:    database,
		svc:         cfg.svc,
		logger:      cfg.logger,
	}, nil
}
