package store

import (
	"github.com/agilira/go-errors"
)

// Error codes for the storage core. Kinds, not types, per the error
// handling taxonomy: every backend and MemoryStore returns one of these
// sentinels, never a bespoke error value.
const (
	ErrCodeNotFound         errors.ErrorCode = "MEMCRS_NOT_FOUND"
	ErrCodeKeyExists        errors.ErrorCode = "MEMCRS_KEY_EXISTS"
	ErrCodeNonNumeric       errors.ErrorCode = "MEMCRS_NON_NUMERIC"
	ErrCodeValueTooLarge    errors.ErrorCode = "MEMCRS_VALUE_TOO_LARGE"
	ErrCodeInvalidArguments errors.ErrorCode = "MEMCRS_INVALID_ARGUMENTS"
	ErrCodeUnknownCommand   errors.ErrorCode = "MEMCRS_UNKNOWN_COMMAND"
	ErrCodeIO               errors.ErrorCode = "MEMCRS_IO"
	ErrCodeDecode           errors.ErrorCode = "MEMCRS_DECODE"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.NewWithContext(ErrCodeNotFound, "key not found", nil)

// ErrKeyExists is returned on a CAS mismatch, or add-on-existing.
var ErrKeyExists = errors.NewWithContext(ErrCodeKeyExists, "key exists", nil)

// ErrNonNumeric is returned when incr/decr is attempted on a value that is
// not ASCII-decimal text.
var ErrNonNumeric = errors.NewWithContext(ErrCodeNonNumeric, "value is not numeric", nil)

// ErrValueTooLarge is returned when a payload exceeds item_memory_limit.
var ErrValueTooLarge = errors.NewWithContext(ErrCodeValueTooLarge, "value exceeds item memory limit", nil)

// ErrInvalidArguments is returned on malformed extras.
var ErrInvalidArguments = errors.NewWithContext(ErrCodeInvalidArguments, "invalid arguments", nil)

// ErrUnknownCommand is returned for an unrecognized opcode.
var ErrUnknownCommand = errors.NewWithContext(ErrCodeUnknownCommand, "unknown command", nil)

// ErrIO wraps a connection-fatal read/write failure.
var ErrIO = errors.NewWithContext(ErrCodeIO, "io error", nil)

// ErrDecode wraps a connection-fatal frame decode failure.
var ErrDecode = errors.NewWithContext(ErrCodeDecode, "decode error", nil)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.HasCode(err, ErrCodeNotFound) }

// IsKeyExists reports whether err is (or wraps) ErrKeyExists.
func IsKeyExists(err error) bool { return errors.HasCode(err, ErrCodeKeyExists) }

// IsNonNumeric reports whether err is (or wraps) ErrNonNumeric.
func IsNonNumeric(err error) bool { return errors.HasCode(err, ErrCodeNonNumeric) }

// IsValueTooLarge reports whether err is (or wraps) ErrValueTooLarge.
func IsValueTooLarge(err error) bool { return errors.HasCode(err, ErrCodeValueTooLarge) }
