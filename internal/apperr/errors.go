package apperr

import "errors"

var (
	ErrNoReport        = errors.New("no scan has completed yet")
	ErrUnknownCategory = errors.New("unknown asset category")
	ErrUnknownKind     = errors.New("unknown reference kind")
	ErrMissingRefs     = errors.New("missing references found")
)
