package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MaxIdentifierLen is the PostgreSQL NAMEDATALEN-1 limit.
const MaxIdentifierLen = 63

const namespacePrefix = "case_"

// NamespaceFor derives the storage namespace of a case from its unique id.
// Display names are never used: they may be renamed and can collide after folding.
func NamespaceFor(caseID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(caseID))
	if id == "" {
		return "", WrapError(ErrInvalidInput, "namespace for case", errors.New("empty case id"))
	}
	id = strings.NewReplacer(" ", "_", "-", "_").Replace(id)
	ns := namespacePrefix + id
	if err := ValidateIdentifier(ns); err != nil {
		return "", WrapError(ErrInvalidInput, "namespace for case", err)
	}
	return ns, nil
}

// ValidateIdentifier accepts lower-case ASCII letters, digits and underscores,
// starting with a letter or underscore, at most MaxIdentifierLen bytes.
func ValidateIdentifier(name string) error {
	if name == "" {
		return errors.New("empty identifier")
	}
	if len(name) > MaxIdentifierLen {
		return fmt.Errorf("identifier %q longer than %d bytes", name, MaxIdentifierLen)
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return fmt.Errorf("identifier %q contains disallowed character %q", name, r)
		}
	}
	return nil
}

// SanitizeIdentifier folds an arbitrary record key into a valid column name.
func SanitizeIdentifier(name string) (string, error) {
	folded := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, strings.TrimSpace(name))
	if folded == "" {
		return "", errors.New("empty identifier")
	}
	if folded[0] >= '0' && folded[0] <= '9' {
		folded = "_" + folded
	}
	if len(folded) > MaxIdentifierLen {
		folded = folded[:MaxIdentifierLen]
	}
	return folded, ValidateIdentifier(folded)
}
