package peripheral

import (
	"fmt"

	"github.com/juju/errors"
)

var (
	ErrInvalidLength = errors.New("length must be 2 or 4")
	ErrNoResetLine   = errors.New("reset line is not configured")
)

type ChecksumError struct {
	Command  byte
	Received byte
	Computed byte
	Data     []byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum problem command=%02x received=%02x computed=%02x data=%x",
		e.Command, e.Received, e.Computed, e.Data)
}

type ResyncError struct {
	Got []byte
}

func (e *ResyncError) Error() string {
	return fmt.Sprintf("resync signature mismatch got=%x expected=%x", e.Got, resyncSignature)
}

type BusIOError struct {
	Op  string
	Err error
}

func (e *BusIOError) Error() string { return fmt.Sprintf("bus %s: %v", e.Op, e.Err) }
func (e *BusIOError) Unwrap() error { return e.Err }

func IsChecksum(err error) bool {
	_, ok := errors.Cause(err).(*ChecksumError)
	return ok
}

func IsResync(err error) bool {
	_, ok := errors.Cause(err).(*ResyncError)
	return ok
}

func IsBusIO(err error) bool {
	_, ok := errors.Cause(err).(*BusIOError)
	return ok
}

func IsInvalidLength(err error) bool {
	return errors.Cause(err) == ErrInvalidLength
}
