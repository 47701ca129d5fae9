package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNoChainSelected    = errors.New("no chain selected for detection")
	ErrDetectionExhausted = errors.New("ledger not detected")
	ErrDetectionCancelled = errors.New("detection cancelled")
	ErrDeviceBusy         = errors.New("ledger device busy")
	ErrSuperseded         = errors.New("ledger session was reset during the call")
	ErrUnsupportedChain   = errors.New("chain not supported in standalone ledger mode")
	errEmptyAddress       = errors.New("bridge returned an empty address")
)

// ErrorID classifies a failed device call.
type ErrorID string

const (
	ErrorGetAddressFailed ErrorID = "GET_ADDRESS_FAILED"
	ErrorNoDevice         ErrorID = "NO_DEVICE"
	ErrorWrongApp         ErrorID = "WRONG_APP"
	ErrorTimeout          ErrorID = "TIMEOUT"
	ErrorDenied           ErrorID = "DENIED"
)

// Error is a failed device call as reported to callers.
type Error struct {
	ID  ErrorID `json:"errorId"`
	Msg string  `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger %s: %s", e.ID, e.Msg)
}

// Is matches another *Error with the same ID, so errors.Is(err,
// &Error{ID: ErrorWrongApp}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.ID == e.ID
}

// toError keeps a device error as reported by the bridge and classifies
// everything else as ErrorGetAddressFailed.
func toError(err error) *Error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return &Error{ID: ErrorGetAddressFailed, Msg: err.Error()}
}
