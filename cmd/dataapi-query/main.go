// Command dataapi-query runs a single statement through the Data API and
// prints the result.
//
//	dataapi-query -dsn 'rdsdataapi://<secret>@<resource>/appdb' \
//		-param id=7 'SELECT * FROM users WHERE id = :id'
//
// The DSN may also come from DATAAPI_DSN. Without a statement argument the
// statement is read from standard input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tomyedwab/rdsdataapi/dbapi"
	"github.com/tomyedwab/rdsdataapi/driver"
)

// params collects repeated -param name=value flags.
type params map[string]any

func (p params) String() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ",")
}

func (p params) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	p[name] = parseValue(raw)
	return nil
}

// parseValue picks the narrowest type the text parses as.
func parseValue(raw string) any {
	if strings.EqualFold(raw, "null") {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

type options struct {
	dsn     string
	format  string
	timeout time.Duration
	params  params
	sql     string
}

func parseOptions(args []string, getenv func(string) string, stdin io.Reader) (*options, error) {
	opts := &options{params: params{}}
	fs := flag.NewFlagSet("dataapi-query", flag.ContinueOnError)
	fs.StringVar(&opts.dsn, "dsn", getenv("DATAAPI_DSN"), "Data source name, rdsdataapi://<secret>@<resource>/<database>")
	fs.StringVar(&opts.format, "format", "table", "Output format: table, csv or json")
	fs.DurationVar(&opts.timeout, "timeout", time.Minute, "Statement timeout")
	fs.Var(opts.params, "param", "Statement parameter as name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.dsn == "" {
		return nil, errors.New("-dsn or DATAAPI_DSN is required")
	}
	if _, ok := formatters[opts.format]; !ok {
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}

	opts.sql = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if opts.sql == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read statement: %w", err)
		}
		opts.sql = strings.TrimSpace(string(data))
	}
	if opts.sql == "" {
		return nil, errors.New("no statement given")
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Getenv, os.Stdin)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "dataapi-query:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	conn, err := connect(ctx, opts.dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dataapi-query:", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := run(ctx, conn, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "dataapi-query:", err)
		os.Exit(1)
	}
}

// connect opens a client connection through the driver's DSN handling so
// both the AWS and HTTP transports are available.
func connect(ctx context.Context, dsn string) (*dbapi.Connection, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	dc, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return dc.(*driver.Conn).Connection(), nil
}

func run(ctx context.Context, conn *dbapi.Connection, opts *options, stdout, stderr io.Writer) error {
	cur := conn.Cursor()
	defer cur.Close()

	if err := cur.Execute(ctx, opts.sql, opts.params); err != nil {
		return err
	}

	desc := cur.Description()
	if desc == nil {
		_, err := fmt.Fprintf(stderr, "%d rows affected\n", cur.RowCount())
		return err
	}

	header := make([]string, len(desc))
	for i, col := range desc {
		header[i] = col.Name
	}
	rows, err := cur.FetchAll()
	if err != nil {
		return err
	}
	return formatters[opts.format].Format(header, rows, stdout)
}
