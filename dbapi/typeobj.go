package dbapi

import (
	"strings"
	"time"
)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Time returns a time of day on the zero date, in UTC.
func Time(hour, minute, second int) time.Time {
	return time.Date(0, time.January, 1, hour, minute, second, 0, time.UTC)
}

// Timestamp returns the given instant in UTC.
func Timestamp(year int, month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

// DateFromTicks returns the local date of ticks seconds since the epoch.
func DateFromTicks(ticks int64) time.Time {
	year, month, day := time.Unix(ticks, 0).Local().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.Local)
}

// TimeFromTicks returns the local time of day of ticks seconds since the
// epoch.
func TimeFromTicks(ticks int64) time.Time {
	hour, minute, second := time.Unix(ticks, 0).Local().Clock()
	return time.Date(0, time.January, 1, hour, minute, second, 0, time.Local)
}

// TimestampFromTicks returns ticks seconds since the epoch in local time,
// truncated to the second.
func TimestampFromTicks(ticks int64) time.Time {
	return time.Unix(ticks, 0).Local()
}

// Binary returns v as a byte slice, which the codec sends as a blob.
func Binary[T ~string | ~[]byte](v T) []byte {
	return []byte(v)
}

// TypeObject groups declared column type names into a category that can be
// compared against Column.TypeCode.
type TypeObject struct {
	name  string
	names []string
}

// Type categories of Column.TypeCode values.
var (
	TypeString = TypeObject{name: "STRING", names: []string{
		"varchar", "char", "character", "character varying", "bpchar", "nchar",
		"nvarchar", "text", "tinytext", "mediumtext", "longtext", "string",
		"enum", "set", "json", "jsonb", "uuid",
	}}
	TypeBinary = TypeObject{name: "BINARY", names: []string{
		"blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary",
		"bytea",
	}}
	TypeNumber = TypeObject{name: "NUMBER", names: []string{
		"int", "integer", "int2", "int4", "int8", "tinyint", "smallint",
		"mediumint", "bigint", "serial", "serial4", "serial8", "bigserial",
		"decimal", "numeric", "float", "float4", "float8", "real", "double",
		"double precision", "bit", "bool", "boolean",
	}}
	TypeDatetime = TypeObject{name: "DATETIME", names: []string{
		"date", "time", "timetz", "datetime", "timestamp", "timestamptz",
		"timestamp with time zone", "timestamp without time zone",
		"time with time zone", "time without time zone", "year", "interval",
	}}
	TypeRowID = TypeObject{name: "ROWID", names: []string{
		"rowid", "oid", "tid",
	}}
)

func (t TypeObject) String() string {
	return t.name
}

// Matches reports whether typeName belongs to the category. The comparison
// is case-insensitive and ignores size arguments and an UNSIGNED suffix, so
// "VARCHAR(255)" and "int unsigned" match.
func (t TypeObject) Matches(typeName string) bool {
	typeName = strings.ToLower(strings.TrimSpace(typeName))
	if i := strings.IndexByte(typeName, '('); i >= 0 {
		typeName = strings.TrimSpace(typeName[:i])
	}
	typeName = strings.TrimSpace(strings.TrimSuffix(typeName, "unsigned"))
	for _, name := range t.names {
		if typeName == name {
			return true
		}
	}
	return false
}
