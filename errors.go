package minbpe

import (
	"errors"
	"fmt"
)

var (
	ErrConfig         = errors.New("minbpe: invalid configuration")
	ErrRecovery       = errors.New("minbpe: merge recovery failed")
	ErrUnknownTokenID = errors.New("minbpe: unknown token id")
)

// ConfigError reports configuration that is rejected before any training or
// encoding happens, including malformed merge tables supplied from outside.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("minbpe: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

func configErrorf(field string, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RecoveryError reports a rank table entry whose merge pair could not be
// reconstructed.
type RecoveryError struct {
	Token  []byte
	Rank   Token
	Parts  int
	Reason string
}

func (e *RecoveryError) Error() string {
	if e.Parts > 0 {
		return fmt.Sprintf("minbpe: cannot recover merge for token %q "+
			"(rank %d): %s, reduced to %d parts", e.Token, e.Rank, e.Reason,
			e.Parts)
	}
	return fmt.Sprintf("minbpe: cannot recover merge for token %q "+
		"(rank %d): %s", e.Token, e.Rank, e.Reason)
}

func (e *RecoveryError) Is(target error) bool {
	return target == ErrRecovery
}

// UnknownTokenIDError is returned by Decode for ids that have no vocabulary
// entry.
type UnknownTokenIDError struct {
	ID Token
}

func (e *UnknownTokenIDError) Error() string {
	return fmt.Sprintf("minbpe: unknown token id %d", e.ID)
}

func (e *UnknownTokenIDError) Is(target error) bool {
	return target == ErrUnknownTokenID
}
