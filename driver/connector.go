package driver

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"

	"github.com/tomyedwab/rdsdataapi/dbapi"
	"github.com/tomyedwab/rdsdataapi/service"
)

var _ driver.Connector = (*Connector)(nil)

// Connector opens connections for one Config. Use it with sql.OpenDB to
// supply options a DSN cannot carry.
type Connector struct {
	cfg    *Config
	svc    service.Service
	logger *slog.Logger
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithService sets the transport shared by every connection. It takes
// precedence over the DSN's endpoint and region.
func WithService(svc service.Service) ConnectorOption {
	return func(c *Connector) {
		c.svc = svc
	}
}

// WithLogger sets the logger passed to each connection.
func WithLogger(logger *slog.Logger) ConnectorOption {
	return func(c *Connector) {
		c.logger = logger
	}
}

// NewConnector creates a Connector. Without WithService the transport is
// built from cfg: an HTTP client when Endpoint is set, the AWS SDK
// otherwise.
func NewConnector(cfg *Config, opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.svc == nil {
		svc, err := newService(cfg)
		if err != nil {
			return nil, err
		}
		c.svc = svc
	}
	return c, nil
}

func newService(cfg *Config) (service.Service, error) {
	if cfg.Endpoint == "" {
		client, err := service.NewAWSClientFromSession(cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("rdsdataapi: %w", err)
		}
		return client, nil
	}

	var opts []service.HTTPClientOption
	if cfg.Timeout > 0 {
		opts = append(opts, service.WithTimeout(cfg.Timeout))
	}
	if cfg.SigningKey != "" {
		opts = append(opts, service.WithSigningKey([]byte(cfg.SigningKey)))
	}
	if cfg.CADir != "" {
		pool, err := service.LoadCertPool(cfg.CADir)
		if err != nil {
			return nil, fmt.Errorf("rdsdataapi: %w", err)
		}
		opts = append(opts, service.WithRootCAs(pool))
	}
	return service.NewHTTPClient(cfg.Endpoint, opts...), nil
}

// Connect returns a new connection. No remote call is made.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := dbapi.Connect(c.cfg.ResourceArn, c.cfg.SecretArn, c.cfg.Database,
		dbapi.WithService(c.svc),
		dbapi.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn}, nil
}

// Driver returns the registered driver.
func (c *Connector) Driver() driver.Driver {
	return &Driver{}
}
