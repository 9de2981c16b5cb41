package checklist

import "errors"

// ErrNotFound also covers rows owned by another client, so callers cannot
// discover other tenants' records.
var (
	ErrUnauthorized     = errors.New("caller is not linked to a client")
	ErrTemplateNotFound = errors.New("template not found")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnknownCategory  = errors.New("unknown checklist category")
	ErrUnknownPhase     = errors.New("unknown checklist phase")
	ErrInvalidInput     = errors.New("invalid input")
)
