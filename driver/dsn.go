package driver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Scheme is the URL scheme of a data source name.
const Scheme = "rdsdataapi"

// ErrInvalidDSN is returned for data source names that cannot be parsed.
var ErrInvalidDSN = errors.New("invalid DSN")

// Config is a parsed data source name.
type Config struct {
	ResourceArn string
	SecretArn   string
	Database    string

	// Endpoint is the base URL of an HTTP Data API endpoint such as the local
	// emulator. When empty the AWS SDK transport is used.
	Endpoint string
	// Region overrides the AWS region of the SDK transport.
	Region string
	// SigningKey signs requests to Endpoint with a bearer token.
	SigningKey string
	// Timeout bounds each request to Endpoint.
	Timeout time.Duration
	// CADir names a directory of PEM certificates trusted for an https
	// Endpoint.
	CADir string
}

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{}
}

// ParseDSN parses a data source name of the form
//
//	rdsdataapi://<secretArn>@<resourceArn>/<database>[?endpoint=...&region=...&signing_key=...&timeout=...&ca_dir=...]
//
// Each component may be percent-encoded. The secret and resource
// identifiers are required.
func ParseDSN(dsn string) (*Config, error) {
	rest, ok := strings.CutPrefix(dsn, Scheme+"://")
	if !ok {
		return nil, fmt.Errorf("%w: scheme must be %s://", ErrInvalidDSN, Scheme)
	}

	rest, query, _ := strings.Cut(rest, "?")

	// Secret names may contain '@' and '/', so split at the last '@'.
	at := strings.LastIndexByte(rest, '@')
	if at < 0 {
		return nil, fmt.Errorf("%w: missing secret identifier", ErrInvalidDSN)
	}
	hostPath := rest[at+1:]
	host, path, _ := strings.Cut(hostPath, "/")

	cfg := NewConfig()
	var err error
	if cfg.SecretArn, err = unescape("secret identifier", rest[:at]); err != nil {
		return nil, err
	}
	if cfg.ResourceArn, err = unescape("resource identifier", host); err != nil {
		return nil, err
	}
	if cfg.Database, err = unescape("database", path); err != nil {
		return nil, err
	}

	if cfg.SecretArn == "" {
		return nil, fmt.Errorf("%w: missing secret identifier", ErrInvalidDSN)
	}
	if cfg.ResourceArn == "" {
		return nil, fmt.Errorf("%w: missing resource identifier", ErrInvalidDSN)
	}

	if query != "" {
		if err := cfg.parseParams(query); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *Config) parseParams(query string) error {
	params, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}

	for key, values := range params {
		value := values[len(values)-1]
		switch key {
		case "endpoint":
			cfg.Endpoint = value
		case "region":
			cfg.Region = value
		case "signing_key":
			cfg.SigningKey = value
		case "ca_dir":
			cfg.CADir = value
		case "timeout":
			cfg.Timeout, err = time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%w: invalid timeout %q: %v", ErrInvalidDSN, value, err)
			}
		default:
			return fmt.Errorf("%w: unknown option %q", ErrInvalidDSN, key)
		}
	}
	return nil
}

// FormatDSN formats the config as a data source name accepted by ParseDSN.
func (cfg *Config) FormatDSN() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString("://")
	b.WriteString(escape(cfg.SecretArn))
	b.WriteByte('@')
	b.WriteString(escape(cfg.ResourceArn))
	b.WriteByte('/')
	b.WriteString(escape(cfg.Database))

	params := url.Values{}
	if cfg.Endpoint != "" {
		params.Set("endpoint", cfg.Endpoint)
	}
	if cfg.Region != "" {
		params.Set("region", cfg.Region)
	}
	if cfg.SigningKey != "" {
		params.Set("signing_key", cfg.SigningKey)
	}
	if cfg.Timeout > 0 {
		params.Set("timeout", cfg.Timeout.String())
	}
	if cfg.CADir != "" {
		params.Set("ca_dir", cfg.CADir)
	}
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}

func unescape(what, s string) (string, error) {
	v, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: bad %s encoding: %v", ErrInvalidDSN, what, err)
	}
	return v, nil
}

// escape keeps ':' readable in identifiers but encodes the separators.
func escape(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "@", "%40")
}
