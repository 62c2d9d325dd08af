// Package driver implements a database/sql/driver for the Data API on top of
// package dbapi.
//
// Usage:
//
//  1. Import the driver package. This registers the driver with the name "rdsdataapi".
//     import _ "github.com/tomyedwab/rdsdataapi/driver"
//
//  2. Open a database with a data source name naming the secret, the
//     resource and the database. ARNs may be written raw or percent-encoded:
//
//     db, err := sql.Open("rdsdataapi",
//     "rdsdataapi://arn:aws:secretsmanager:us-east-1:123456789012:secret:app-AbCdEf@arn:aws:rds:us-east-1:123456789012:cluster:app/appdb")
//
//  3. Pass parameters with sql.Named; positional arguments are rejected:
//
//     row := db.QueryRowContext(ctx, "SELECT name FROM users WHERE id = :id", sql.Named("id", 7))
//
// Options:
//
//   - endpoint: base URL of an HTTP Data API endpoint, e.g. the local emulator.
//     Without it requests go through the AWS SDK.
//   - region: AWS region for the SDK transport.
//   - signing_key: key used to sign bearer tokens for the HTTP endpoint.
//   - timeout: per-request timeout for the HTTP endpoint, as a Go duration.
//   - ca_dir: directory of PEM certificates to trust for an https endpoint.
//
// Implemented Interfaces:
//
// Besides the core driver.Driver, driver.Conn, driver.Stmt, driver.Tx,
// driver.Result and driver.Rows, the driver implements driver.DriverContext,
// driver.Connector, driver.ConnBeginTx, driver.ExecerContext,
// driver.QueryerContext, driver.NamedValueChecker, driver.SessionResetter,
// driver.Validator and driver.RowsColumnTypeDatabaseTypeName.
//
// Limitations:
//
//   - Statements are not prepared remotely; Prepare only records the SQL.
//   - Results are fully buffered.
//   - Only the default isolation level is supported.
//   - Values are limited to what package codec encodes. time.Time in
//     particular must be formatted by the caller.
package driver
