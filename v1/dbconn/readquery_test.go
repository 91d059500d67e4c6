package dbconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReadQuery(t *testing.T) {
	reads := []string{
		"SELECT 1",
		"  select * from t",
		"\n\tWith x AS (SELECT 1) SELECT * FROM x",
		"(SELECT a FROM t) UNION (SELECT a FROM u)",
		"-- leading comment\nSELECT 1",
		"/* hint */ SELECT 1",
		"PRAGMA table_info(t)",
		"SHOW TABLES",
		"EXPLAIN SELECT 1",
	}
	for _, q := range reads {
		assert.True(t, IsReadQuery(q), q)
	}

	writes := []string{
		"INSERT INTO t VALUES (1)",
		"update t set a = 1",
		"DELETE FROM t",
		"CREATE TABLE t (a INT)",
		"BEGIN NULL; END;",
		"",
		"selected_rows",
	}
	for _, q := range writes {
		assert.False(t, IsReadQuery(q), q)
	}
}

func TestLeadingKeyword(t *testing.T) {
	assert.Equal(t, "SELECT", LeadingKeyword("  sElEcT 1"))
	assert.Equal(t, "", LeadingKeyword("-- only a comment"))
	assert.Equal(t, "INSERT", LeadingKeyword("/* a */ /* b */ insert into t"))
}
