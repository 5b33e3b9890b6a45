package rfc2217

import (
	"errors"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

var (
	// ErrNegotiationTimeout is returned when the peer neither accepts nor
	// refuses COM-PORT-OPTION within the negotiation timeout.
	ErrNegotiationTimeout = errors.New("rfc2217: could not negotiate serial port in time")

	// ErrNegotiationRejected is returned when the peer answers
	// DONT COM-PORT-OPTION.
	ErrNegotiationRejected = comport.ErrRejected

	// ErrProtocolOverflow is returned when 1 MiB of data arrives before
	// negotiation completes.
	ErrProtocolOverflow = errors.New("rfc2217: could not negotiate serial port in first 1MB of data")

	// ErrWouldBlock is returned by ReadNonblock when no data is ready.
	ErrWouldBlock = errors.New("rfc2217: read would block")

	// ErrInvalidParameters is returned for out-of-range modem parameters.
	ErrInvalidParameters = comport.ErrInvalidParameters

	// ErrClosed is returned by operations on a closed port.
	ErrClosed = errors.New("rfc2217: port closed")
)
