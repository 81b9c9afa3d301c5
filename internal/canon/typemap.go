package canon

import (
	"fmt"
	"strings"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// NormalizeType maps a native column type spelling onto the engine-neutral
// taxonomy used for semantic comparison. The taxonomy names are:
//
//	int8 int16 int32 int64, float32 float64, decimal(p,s),
//	string(n), char(n), text, bytes, bool,
//	date, time, timestamp, timestamptz, uuid, json, xml
//
// Spellings with no mapping pass through lowercased, so two snapshots of the
// same engine still compare equal on types the taxonomy does not cover.
func NormalizeType(engine model.Engine, native string) string {
	base, args := splitType(native)

	switch engine {
	case model.EnginePostgres:
		return normalizePostgres(base, args)
	case model.EngineMySQL:
		return normalizeMySQL(base, args)
	case model.EngineSQLServer:
		return normalizeSQLServer(base, args)
	case model.EngineSQLite:
		return normalizeSQLite(base)
	}
	return base
}

// splitType separates "varchar(255)" into ("varchar", ["255"]),
// lowercasing and trimming along the way.
func splitType(native string) (string, []string) {
	s := strings.ToLower(strings.TrimSpace(native))
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return s, nil
	}
	close := strings.LastIndexByte(s, ')')
	if close < open {
		return s, nil
	}
	base := strings.TrimSpace(s[:open])
	var args []string
	for _, a := range strings.Split(s[open+1:close], ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return base, args
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func sized(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ","))
}

func normalizePostgres(base string, args []string) string {
	switch base {
	case "smallint", "int2", "smallserial":
		return "int16"
	case "integer", "int", "int4", "serial":
		return "int32"
	case "bigint", "int8", "bigserial":
		return "int64"
	case "real", "float4":
		return "float32"
	case "double precision", "float8":
		return "float64"
	case "numeric", "decimal":
		return sized("decimal", args)
	case "character varying", "varchar":
		return sized("string", args)
	case "character", "char", "bpchar":
		return sized("char", args)
	case "text", "citext", "name":
		return "text"
	case "bytea":
		return "bytes"
	case "boolean", "bool":
		return "bool"
	case "date":
		return "date"
	case "time", "time without time zone", "time with time zone":
		return "time"
	case "timestamp", "timestamp without time zone":
		return "timestamp"
	case "timestamptz", "timestamp with time zone":
		return "timestamptz"
	case "uuid":
		return "uuid"
	case "json", "jsonb":
		return "json"
	case "xml":
		return "xml"
	}
	return base
}

func normalizeMySQL(base string, args []string) string {
	// Display widths like int(11) carry no type information.
	switch base {
	case "tinyint":
		if arg(args, 0) == "1" {
			return "bool"
		}
		return "int8"
	case "smallint":
		return "int16"
	case "mediumint", "int", "integer":
		return "int32"
	case "bigint":
		return "int64"
	case "float":
		return "float32"
	case "double", "double precision", "real":
		return "float64"
	case "decimal", "numeric":
		return sized("decimal", args)
	case "varchar", "nvarchar":
		return sized("string", args)
	case "char", "nchar":
		return sized("char", args)
	case "tinytext", "text", "mediumtext", "longtext":
		return "text"
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		return "bytes"
	case "boolean", "bool":
		return "bool"
	case "date":
		return "date"
	case "time":
		return "time"
	case "datetime":
		return "timestamp"
	case "timestamp":
		return "timestamptz"
	case "json":
		return "json"
	}
	return base
}

func normalizeSQLServer(base string, args []string) string {
	switch base {
	case "tinyint":
		return "int8"
	case "smallint":
		return "int16"
	case "int":
		return "int32"
	case "bigint":
		return "int64"
	case "real":
		return "float32"
	case "float":
		return "float64"
	case "decimal", "numeric", "money", "smallmoney":
		return sized("decimal", args)
	case "varchar", "nvarchar":
		if arg(args, 0) == "max" {
			return "text"
		}
		return sized("string", args)
	case "char", "nchar":
		return sized("char", args)
	case "text", "ntext":
		return "text"
	case "binary", "varbinary", "image":
		return "bytes"
	case "bit":
		return "bool"
	case "date":
		return "date"
	case "time":
		return "time"
	case "datetime", "datetime2", "smalldatetime":
		return "timestamp"
	case "datetimeoffset":
		return "timestamptz"
	case "uniqueidentifier":
		return "uuid"
	case "xml":
		return "xml"
	}
	return base
}

// normalizeSQLite follows the affinity rules: any spelling containing INT is
// an integer, CHAR/CLOB/TEXT is text, BLOB is bytes, REAL/FLOA/DOUB is a
// float, everything else numeric.
func normalizeSQLite(base string) string {
	switch {
	case base == "":
		return "text"
	case base == "boolean" || base == "bool":
		return "bool"
	case strings.Contains(base, "int"):
		return "int64"
	case strings.Contains(base, "char"), strings.Contains(base, "clob"),
		strings.Contains(base, "text"):
		return "text"
	case strings.Contains(base, "blob"):
		return "bytes"
	case strings.Contains(base, "real"), strings.Contains(base, "floa"),
		strings.Contains(base, "doub"):
		return "float64"
	case base == "date":
		return "date"
	case base == "datetime" || base == "timestamp":
		return "timestamp"
	case base == "numeric" || base == "decimal":
		return "decimal"
	}
	return base
}
