package ec

import "fmt"

// Status is the result code the embedded controller returns for a command
// exchange. Zero means success.
type Status uint32

const (
	StatusSuccess Status = iota
	StatusInvalidCommand
	StatusInternalError
	StatusInvalidParam
	StatusAccessDenied
	StatusInvalidResponse
	StatusInvalidVersion
	StatusInvalidChecksum
	StatusInProgress
	StatusUnavailable
	StatusTimeout
	StatusOverflow
	StatusInvalidHeader
	StatusRequestTruncated
	StatusResponseTooBig
	StatusBusError
	StatusBusy
)

var statusNames = map[Status]string{
	StatusSuccess:          "success",
	StatusInvalidCommand:   "invalid command",
	StatusInternalError:    "error",
	StatusInvalidParam:     "invalid parameter",
	StatusAccessDenied:     "access denied",
	StatusInvalidResponse:  "invalid response",
	StatusInvalidVersion:   "invalid version",
	StatusInvalidChecksum:  "invalid checksum",
	StatusInProgress:       "in progress",
	StatusUnavailable:      "unavailable",
	StatusTimeout:          "timeout",
	StatusOverflow:         "overflow",
	StatusInvalidHeader:    "invalid header",
	StatusRequestTruncated: "request truncated",
	StatusResponseTooBig:   "response too big",
	StatusBusError:         "bus error",
	StatusBusy:             "busy",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status %d", uint32(s))
}

// TransportError indicates the exchange with the EC device itself failed,
// before the controller reported a result. This is the only error class that
// may be transient (e.g. the EC is busy resuming from suspend).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "ec: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError indicates the EC received a well-formed command and rejected it.
type StatusError struct {
	Command uint32
	Status  Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ec: command 0x%04x failed: %s", e.Command, e.Status)
}

// ProtocolError indicates the EC's reply does not match the size the
// command's response layout requires.
type ProtocolError struct {
	Command   uint32
	Got, Want int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ec: command 0x%04x returned %d bytes, expected %d", e.Command, e.Got, e.Want)
}
