package payroll

import "errors"

var (
	// ErrInvalidAddress marks an obligation whose destination is not a
	// well-formed 20-byte hex address; the obligation is skipped, never
	// attempted
	ErrInvalidAddress = errors.New("invalid recipient address")

	// ErrMultiTokenShortfall means the group's shortfall spans more than
	// one token. The sequencer refuses to guess a resolution order and
	// blocks the run instead.
	ErrMultiTokenShortfall = errors.New("shortfall spans multiple tokens")

	// ErrTransferFailed marks a per-obligation transfer failure
	ErrTransferFailed = errors.New("transfer failed")

	// ErrPersistenceFailed marks a ledger write failure. It is surfaced as
	// a warning only: the on-chain effect already happened.
	ErrPersistenceFailed = errors.New("persistence failed")
)
