package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCaseNotFound        = errors.New("case not found")
	ErrLogNotFound         = errors.New("ingestion log not found")
	ErrTableNotFound       = errors.New("table not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedArtifact = errors.New("unsupported artifact type")
	ErrSchemaMismatch      = errors.New("record does not match table columns")
	ErrQueryRejected       = errors.New("query rejected")
	ErrConflict            = errors.New("conflict")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
