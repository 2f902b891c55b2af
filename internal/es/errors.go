package es

import "errors"

var (
	// ErrNotFound indica que el stream no existe (o no alcanza la versión pedida).
	ErrNotFound = errors.New("stream not found")

	// ErrVersionConflict indica que el stream avanzó desde que se cargó el aggregate.
	ErrVersionConflict = errors.New("stream version conflict")

	// ErrBadAddress indica una dirección de stream malformada.
	ErrBadAddress = errors.New("malformed stream address")

	// ErrUnknownEvent indica un payload cuyo kind no está registrado en el codec.
	ErrUnknownEvent = errors.New("unknown event kind")
)
