package crud

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

func TestInferColumnTypesPerDialect(t *testing.T) {
	date := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	values := [][]any{{1, 10.5, date}}
	columns := []string{"n", "price", "day"}

	tests := []struct {
		backend dbconn.Type
		want    []string
	}{
		{dbconn.PostgreSQL, []string{"INTEGER", "DOUBLE PRECISION", "DATE"}},
		{dbconn.MySQL, []string{"INT", "DOUBLE", "DATE"}},
		{dbconn.SQLite, []string{"INTEGER", "REAL", "DATE"}},
		{dbconn.SQLServer, []string{"INT", "FLOAT", "DATE"}},
		{dbconn.Oracle, []string{"NUMBER", "FLOAT", "DATE"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			d, err := DialectFor(tt.backend)
			require.NoError(t, err)

			defs := d.InferColumnTypes(values, columns, "")
			got := make([]string, len(defs))
			for i, def := range defs {
				got[i] = def.Type
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferColumnTypesMixing(t *testing.T) {
	d := PostgresDialect()
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	noon := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	defs := d.InferColumnTypes([][]any{
		{1, 1, "a", day, nil, map[string]any{"k": 1}, int64(3_000_000_000)},
		{2.5, "x", "b", noon, nil, json.RawMessage(`[1]`), int64(1)},
	}, []string{"num", "mixed", "text", "when", "empty", "doc", "big"}, "")

	want := []ColumnDef{
		{"num", "DOUBLE PRECISION"},
		{"mixed", "TEXT"},
		{"text", "TEXT"},
		{"when", "TIMESTAMP"},
		{"empty", "TEXT"},
		{"doc", "JSONB"},
		{"big", "BIGINT"},
	}
	assert.Equal(t, want, defs)
}

func TestInferColumnTypesPrimaryKey(t *testing.T) {
	d := MySQLDialect()

	defs := d.InferColumnTypes([][]any{{"x"}}, []string{"label"}, "id")
	assert.Equal(t, []ColumnDef{
		{"id", "INT AUTO_INCREMENT PRIMARY KEY"},
		{"label", "VARCHAR(255)"},
	}, defs)

	defs = d.InferColumnTypes([][]any{{"k1", 1}}, []string{"code", "n"}, "code")
	assert.Equal(t, "VARCHAR(255) PRIMARY KEY", defs[0].Type)

	defs = d.InferColumnTypes([][]any{{7}}, []string{"id"}, "id")
	assert.Equal(t, "INT AUTO_INCREMENT PRIMARY KEY", defs[0].Type)
}

func TestStringTypesByLength(t *testing.T) {
	long := strings.Repeat("a", 300)
	huge := strings.Repeat("a", 4001)

	assert.Equal(t, "TEXT", MySQLDialect().Types.String(len(long)))
	assert.Equal(t, "VARCHAR(255)", MySQLDialect().Types.String(10))
	assert.Equal(t, "CLOB", OracleDialect().Types.String(len(long)))
	assert.Equal(t, "VARCHAR(50)", SQLServerDialect().Types.String(10))
	assert.Equal(t, "VARCHAR(600)", SQLServerDialect().Types.String(len(long)))
	assert.Equal(t, "VARCHAR(MAX)", SQLServerDialect().Types.String(len(huge)))

	defs := SQLServerDialect().InferColumnTypes([][]any{{"ab"}, {long}}, []string{"s"}, "")
	assert.Equal(t, "VARCHAR(600)", defs[0].Type)
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name    string
		d       Dialect
		orderBy string
		limit   int
		want    string
	}{
		{"postgres", PostgresDialect(), "", 10, " LIMIT 10"},
		{"mysql ordered", MySQLDialect(), "b DESC", 3, " ORDER BY b DESC LIMIT 3"},
		{"sqlite unlimited", SQLiteDialect(), "", 0, ""},
		{"oracle", OracleDialect(), "", 10, " FETCH NEXT 10 ROWS ONLY"},
		{"oracle ordered", OracleDialect(), "b", 10, " ORDER BY b FETCH NEXT 10 ROWS ONLY"},
		{"sqlserver first column", SQLServerDialect(), "", 10, " ORDER BY a OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"sqlserver ordered", SQLServerDialect(), "b", 10, " ORDER BY b OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"sqlserver unlimited", SQLServerDialect(), "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Paginate(tt.orderBy, "a", tt.limit))
		})
	}
}

func TestSQLServerColumnQuoting(t *testing.T) {
	d := SQLServerDialect()
	assert.Equal(t, "[first name]", d.QuoteColumn("first name"))
	assert.Equal(t, "[a-b]", d.QuoteColumn("a-b"))
	assert.Equal(t, "plain", d.QuoteColumn("plain"))
	for _, name := range []string{"a,b", "f(x)", "a=b", "#tmp", "1col", "_hidden"} {
		require.NoError(t, d.ValidateColumn(name), name)
		assert.Equal(t, "["+name+"]", d.QuoteColumn(name), name)
	}

	require.NoError(t, d.ValidateColumn("first name"))
	for _, bad := range []string{"", "a]b", "x'y", "a;b", "a--b"} {
		assert.Error(t, d.ValidateColumn(bad), bad)
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"users", "Users_2", "public.users"} {
		assert.NoError(t, ValidateIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1users", "us-ers", "users;", "a..b", ".users", "x y"} {
		err := ValidateIdentifier(bad)
		require.Error(t, err, bad)
		assert.True(t, dbconn.IsValidationError(err))
		assert.Contains(t, err.Error(), IdentifierPattern)
	}
}

func TestCatalogQueriesWithSchema(t *testing.T) {
	text, params := PostgresDialect().ColumnsQuery("sales", "orders")
	assert.Contains(t, text, "table_schema = LOWER(?)")
	assert.Equal(t, []any{"orders", "sales"}, params)

	text, params = MySQLDialect().ExistsQuery("", "orders")
	assert.Contains(t, text, "DATABASE()")
	assert.Equal(t, []any{"orders"}, params)

	text, _ = SQLiteDialect().ExistsQuery("aux", "orders")
	assert.Contains(t, text, "aux.sqlite_master")

	_, err := DialectFor(dbconn.MongoDB)
	assert.True(t, dbconn.IsValidationError(err))
}
