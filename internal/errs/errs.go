// Package errs defines the ledger's error codes and the kinds they belong to.
package errs

import (
	"errors"
	"fmt"
)

// Kind groups codes by how a caller should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindAuthorization
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Code is a ledger error code. A Code is itself an error, so it can be
// returned bare or matched with errors.Is against a wrapped *Error.
type Code int

const (
	Unknown Code = iota

	// validation
	InvalidDuration
	InvalidAmount
	InvalidNormalizationK
	InvalidStakeIndex
	StakeEntryAlreadyExists
	InvalidProgramEndDate
	InvalidDayIndex

	// state
	StakeNotActive
	NoRewardsAvailable
	ProgramNotEnded
	OutOfHorizon
	PoolNotInitialized
	PoolAlreadyInitialized
	RewardPoolExhausted
	ProgramClosed

	// authorization
	Unauthorized

	// resource
	InsufficientRewardFunds
	InsufficientFunds
	ArithmeticOverflow
)

var names = map[Code]string{
	Unknown:                 "unknown error",
	InvalidDuration:         "invalid staking duration",
	InvalidAmount:           "invalid amount",
	InvalidNormalizationK:   "invalid normalization K value",
	InvalidStakeIndex:       "invalid stake index",
	StakeEntryAlreadyExists: "stake entry already exists",
	InvalidProgramEndDate:   "invalid program end date",
	InvalidDayIndex:         "invalid day index",
	StakeNotActive:          "stake not active",
	NoRewardsAvailable:      "no rewards available",
	ProgramNotEnded:         "program not ended",
	OutOfHorizon:            "day index out of horizon",
	PoolNotInitialized:      "pool not initialized",
	PoolAlreadyInitialized:  "pool already initialized",
	RewardPoolExhausted:     "reward pool exhausted",
	ProgramClosed:           "program closed",
	Unauthorized:            "unauthorized",
	InsufficientRewardFunds: "insufficient reward funds",
	InsufficientFunds:       "insufficient funds",
	ArithmeticOverflow:      "arithmetic overflow",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error implements error.
func (c Code) Error() string { return c.String() }

// Kind returns the kind the code belongs to.
func (c Code) Kind() Kind {
	switch {
	case c >= InvalidDuration && c <= InvalidDayIndex:
		return KindValidation
	case c >= StakeNotActive && c <= ProgramClosed:
		return KindState
	case c == Unauthorized:
		return KindAuthorization
	case c >= InsufficientRewardFunds && c <= ArithmeticOverflow:
		return KindResource
	default:
		return KindUnknown
	}
}

// With returns an error carrying the code and a message.
func (c Code) With(v ...interface{}) *Error {
	return &Error{Code: c, Message: fmt.Sprint(v...)}
}

// WithFormat returns an error carrying the code and a formatted message. A %w
// verb in the format becomes the cause.
func (c Code) WithFormat(format string, args ...interface{}) *Error {
	err := fmt.Errorf(format, args...)
	e := &Error{Code: c, Message: err.Error()}
	if u := errors.Unwrap(err); u != nil {
		e.Cause = u
	}
	return e
}

// Wrap attaches the code to err. A nil err stays nil.
func (c Code) Wrap(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Code == c {
		return err
	}
	return &Error{Code: c, Message: err.Error(), Cause: err}
}

// Error is a coded error with context.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is the error's code.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// CodeOf returns the first code found in err's chain, or Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Unknown
}
