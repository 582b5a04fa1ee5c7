package types

import "errors"

var (
	// ErrPacketDecode is returned when rotation packet bytes cannot be decoded
	ErrPacketDecode = errors.New("malformed rotation packet")

	// ErrPacketSignature is returned when the packet digest does not match its keys
	ErrPacketSignature = errors.New("rotation packet signature mismatch")

	// ErrIdentityMismatch is returned when the claimed sender key differs from the packet's old key
	ErrIdentityMismatch = errors.New("sender identity mismatch")

	// ErrTransport is returned when handing a packet to the peer transport failed
	ErrTransport = errors.New("transport delivery failed")

	// ErrPersistence is returned on blob store read/write failures (non-fatal on save)
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned when a requested document or record doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrBadRequest is returned on invalid caller input
	ErrBadRequest = errors.New("bad request")

	// ErrConflict is returned when the resource conflicts (e.g. update of old revision)
	ErrConflict = errors.New("conflict")

	// ErrInternal (for unhandled exceptions)
	ErrInternal = errors.New("internal error")
)
