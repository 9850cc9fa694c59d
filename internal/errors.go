package catalog

import "errors"

// Sentinel errors for the catalog domain.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownKind   = errors.New("unknown resource kind")
	ErrBadRequest    = errors.New("bad request")
	ErrTransport     = errors.New("remote transport error")
	ErrServer        = errors.New("remote server error")
	ErrCircuitOpen   = errors.New("circuit open")
	ErrStorageRead   = errors.New("storage read error")
	ErrStorageWrite  = errors.New("storage write error")
	ErrSerialization = errors.New("serialization error")
)
