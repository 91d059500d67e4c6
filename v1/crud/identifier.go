package crud

import (
	"regexp"
	"strings"

	"github.com/Aleph-Alpha/etl-manager/v1/dbconn"
)

// IdentifierPattern is the shape every table and column name must have
// before it is interpolated into SQL.
const IdentifierPattern = `^[A-Za-z][A-Za-z0-9_]*$`

var (
	identifierRe = regexp.MustCompile(IdentifierPattern)
	orderItemRe  = regexp.MustCompile(`(?i)^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)?(\s+(ASC|DESC))?$`)
)

// ValidateIdentifier checks a table name. A schema-qualified name is
// accepted when every dotted part matches IdentifierPattern.
func ValidateIdentifier(name string) error {
	if name == "" {
		return invalidIdentifier(name)
	}
	for _, part := range strings.Split(name, ".") {
		if !identifierRe.MatchString(part) {
			return invalidIdentifier(name)
		}
	}
	return nil
}

func invalidIdentifier(name string) error {
	return dbconn.NewValidationError("", "validate",
		"invalid identifier "+quote(name)+": must match "+IdentifierPattern, nil)
}

// validateColumn is the default column rule: the identifier pattern.
func validateColumn(name string) error {
	if !identifierRe.MatchString(name) {
		return dbconn.NewValidationError("", "validate",
			"invalid column "+quote(name)+": must match "+IdentifierPattern, nil)
	}
	return nil
}

// validateBracketedColumn accepts any name that can sit safely inside
// [brackets]: no brackets, quotes, statement separators or comments.
func validateBracketedColumn(name string) error {
	if strings.TrimSpace(name) == "" ||
		strings.ContainsAny(name, "[]'\";\x00\n\r") ||
		strings.Contains(name, "--") ||
		strings.Contains(name, "/*") {
		return dbconn.NewValidationError("", "validate", "invalid column "+quote(name), nil)
	}
	return nil
}

func validateOrderBy(orderBy string) error {
	for _, item := range strings.Split(orderBy, ",") {
		if !orderItemRe.MatchString(strings.TrimSpace(item)) {
			return dbconn.NewValidationError("", "validate", "invalid order by clause "+quote(orderBy), nil)
		}
	}
	return nil
}

// splitQualified separates an optional schema from the table name.
func splitQualified(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func quote(s string) string { return "'" + s + "'" }
