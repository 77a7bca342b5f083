// Package ident implements identifier legality checks and the
// VersionString comparable version format used throughout Celesta grains.
package ident

import (
	"regexp"

	"github.com/celesta-db/celesta"
)

// identifierPattern matches a legal Celesta identifier: a letter or
// underscore followed by letters, digits, or underscores.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MaxIdentifierLength is the longest identifier Celesta accepts, matching
// the nvarchar2(30) column width used to persist grain/table names in the
// system catalog.
const MaxIdentifierLength = 30

// Validate reports whether name is a legal Celesta identifier, returning a
// *celesta.Error of kind KindUnknownColumn-adjacent validation failure when
// it is not.
func Validate(name string) error {
	if name == "" {
		return celesta.New(celesta.KindUnknownColumn, "identifier must not be empty")
	}
	if len(name) > MaxIdentifierLength {
		return celesta.New(celesta.KindUnknownColumn, "identifier %q exceeds %d characters", name, MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return celesta.New(celesta.KindUnknownColumn, "identifier %q is not a legal Celesta identifier", name)
	}
	return nil
}

// IsValid is a boolean convenience wrapper around Validate.
func IsValid(name string) bool {
	return Validate(name) == nil
}
