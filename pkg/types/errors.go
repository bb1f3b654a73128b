package types

import "github.com/pkg/errors"

// Structural errors abort a call. Signature failures are never reported through these.
var (
	ErrUnauthorizedCaller        = errors.New("unauthorized caller")
	ErrInvalidSignatureLength    = errors.New("invalid signature length")
	ErrInvalidSignatureOffset    = errors.New("invalid signature offset")
	ErrInvalidDigest             = errors.New("invalid digest: actual and minimal digests are equal")
	ErrEmptyOwnersNotAllowed     = errors.New("empty owners not allowed")
	ErrZeroOwnersInputNotAllowed = errors.New("zero owners input not allowed")
	ErrTooManyOwners             = errors.New("too many owners")
	ErrInvalidOwner              = errors.New("invalid owner")
	ErrOwnerDoesNotExist         = errors.New("owner does not exist")
	ErrDuplicateOwner            = errors.New("duplicate owner")
	ErrInvalidThreshold          = errors.New("invalid threshold")
	ErrInvalidInstallData        = errors.New("invalid install data")
	ErrNotInstalled              = errors.New("module not installed for entity")
	ErrNotImplemented            = errors.New("not implemented")
)
