package dbconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslatePlaceholders(t *testing.T) {
	tests := []struct {
		name  string
		query string
		style Style
		want  string
	}{
		{"dollar", "SELECT * FROM t WHERE a = ? AND b = ?", Dollar, "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"colon", "INSERT INTO t (a, b) VALUES (?, ?)", Colon, "INSERT INTO t (a, b) VALUES (:1, :2)"},
		{"atp", "UPDATE t SET a = ? WHERE id = ?", AtP, "UPDATE t SET a = @p1 WHERE id = @p2"},
		{"question unchanged", "DELETE FROM t WHERE id = ?", Question, "DELETE FROM t WHERE id = ?"},
		{"percent s to question", "DELETE FROM t WHERE id = %s", Question, "DELETE FROM t WHERE id = ?"},
		{"percent s to dollar", "SELECT * FROM t WHERE a = %s AND b LIKE 'x%%'", Dollar, "SELECT * FROM t WHERE a = $1 AND b LIKE 'x%%'"},
		{"escaped percent outside literal", "SELECT a %% 2 FROM t WHERE b = %s", Dollar, "SELECT a % 2 FROM t WHERE b = $1"},
		{"literal untouched", "SELECT '?' AS q, a FROM t WHERE b = ?", Dollar, "SELECT '?' AS q, a FROM t WHERE b = $1"},
		{"doubled quote", "SELECT 'it''s ?' FROM t WHERE b = ?", Colon, "SELECT 'it''s ?' FROM t WHERE b = :1"},
		{"quoted identifier", `SELECT "odd?col" FROM t WHERE b = ?`, AtP, `SELECT "odd?col" FROM t WHERE b = @p1`},
		{"line comment", "SELECT a -- why?\nFROM t WHERE b = ?", Dollar, "SELECT a -- why?\nFROM t WHERE b = $1"},
		{"block comment", "SELECT /* ? */ a FROM t WHERE b = ?", Dollar, "SELECT /* ? */ a FROM t WHERE b = $1"},
		{"modulo without markers", "SELECT 10 % 3", Dollar, "SELECT 10 % 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslatePlaceholders(tt.query, tt.style))
		})
	}
}

func TestCountPlaceholders(t *testing.T) {
	assert.Equal(t, 2, CountPlaceholders("a = ? AND b = ?"))
	assert.Equal(t, 1, CountPlaceholders("a = %s AND b LIKE '%s'"))
	assert.Equal(t, 0, CountPlaceholders("SELECT '?'"))
}

func TestTypePlaceholder(t *testing.T) {
	assert.Equal(t, Dollar, PostgreSQL.Placeholder())
	assert.Equal(t, Colon, Oracle.Placeholder())
	assert.Equal(t, AtP, SQLServer.Placeholder())
	assert.Equal(t, Question, MySQL.Placeholder())
	assert.Equal(t, Question, SQLite.Placeholder())
}
