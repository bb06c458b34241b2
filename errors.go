package bc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Code is a stable numeric enumeration in the "bc" error category. Values
// 1-122 mirror POSIX errno numbers for the subset of errors the core can
// observe; values 200+ are synthetic codes for conditions the reactor itself
// detects.
type Code int

// Errno-mirroring codes actually produced by this package. The numeric
// values intentionally match the corresponding Linux errno constants, per
// the "bc" category contract.
const (
	CodeOperationNotPermitted     Code = 1   // EPERM
	CodeNoSuchFileOrDirectory     Code = 2   // ENOENT
	CodeInterrupted               Code = 4   // EINTR
	CodeIOError                   Code = 5   // EIO
	CodeBadFileDescriptor         Code = 9   // EBADF
	CodeNotEnoughMemory           Code = 12  // ENOMEM
	CodePermissionDenied          Code = 13  // EACCES
	CodeBadAddress                Code = 14  // EFAULT
	CodeFileExists                Code = 17  // EEXIST
	CodeNotADirectory              Code = 20  // ENOTDIR
	CodeInvalidArgument           Code = 22  // EINVAL
	CodeTooManyFilesOpen          Code = 24  // EMFILE
	CodeFileTooLarge              Code = 27  // EFBIG
	CodeNoSpaceOnDevice           Code = 28  // ENOSPC
	CodeReadOnlyFileSystem        Code = 30  // EROFS
	CodeBrokenPipe                Code = 32  // EPIPE
	CodeNameTooLong               Code = 36  // ENAMETOOLONG
	CodeTooManySymbolicLinkLevels Code = 40  // ELOOP
	CodeNotASocket                Code = 88  // ENOTSOCK
	CodeDestinationAddressRequired Code = 89 // EDESTADDRREQ
	CodeNoProtocolOption          Code = 92  // ENOPROTOOPT
	CodeOperationNotSupported     Code = 95  // EOPNOTSUPP
	CodeAddressInUse              Code = 98  // EADDRINUSE
	CodeAddressNotAvailable       Code = 99  // EADDRNOTAVAIL
	CodeQuotaExceeded             Code = 122 // EDQUOT

	// Synthetic codes, not mirrored from errno.
	CodeEpollError    Code = 200
	CodeClosedByPeer  Code = 201
	CodeInvalidAddress Code = 202
)

var codeNames = map[Code]string{
	CodeOperationNotPermitted:      "operation_not_permitted",
	CodeNoSuchFileOrDirectory:      "no_such_file_or_directory",
	CodeInterrupted:                "interrupted",
	CodeIOError:                    "io_error",
	CodeBadFileDescriptor:          "bad_file_descriptor",
	CodeNotEnoughMemory:            "not_enough_memory",
	CodePermissionDenied:           "permission_denied",
	CodeBadAddress:                 "bad_address",
	CodeFileExists:                 "file_exists",
	CodeNotADirectory:              "not_a_directory",
	CodeInvalidArgument:            "invalid_argument",
	CodeTooManyFilesOpen:           "too_many_files_open",
	CodeFileTooLarge:               "file_too_large",
	CodeNoSpaceOnDevice:            "no_space_on_device",
	CodeReadOnlyFileSystem:         "read_only_file_system",
	CodeBrokenPipe:                 "broken_pipe",
	CodeNameTooLong:                "name_too_long",
	CodeTooManySymbolicLinkLevels:  "too_many_symbolic_link_levels",
	CodeNotASocket:                 "not_a_socket",
	CodeDestinationAddressRequired: "destination_address_required",
	CodeNoProtocolOption:           "no_protocol_option",
	CodeOperationNotSupported:      "operation_not_supported",
	CodeAddressInUse:               "address_in_use",
	CodeAddressNotAvailable:        "address_not_available",
	CodeQuotaExceeded:              "quota_exceeded",
	CodeEpollError:                 "epoll_error",
	CodeClosedByPeer:               "closed_by_peer",
	CodeInvalidAddress:             "invalid_address",
}

// String renders the stable, lowercase, snake_case name used by the "bc"
// category for this code, or a numeric fallback for codes outside the table.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("bc_code_%d", int(c))
}

// Error is the error type returned by this package's awaiters and
// constructors. It always belongs to the "bc" category and carries a
// [Code], a human-readable message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Category is always "bc"; present so callers can assert on the category
// name without depending on the concrete type.
func (e *Error) Category() string { return "bc" }

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bc: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("bc: %s", e.Code)
}

// Unwrap enables errors.Is/errors.As to see through to the wrapped cause,
// following the cause-chain convention used throughout this codebase.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports true for any other *Error with the same Code, so callers can
// do errors.Is(err, &bc.Error{Code: bc.CodeClosedByPeer}) without needing an
// exact message or cause match.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// newError builds an *Error with the given code and message, wrapping cause
// if present.
func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// errnoToCode maps the subset of POSIX errno values this package observes
// onto the matching "bc" category Code. Errno values without a dedicated
// Code constant fall back to CodeIOError, since the category only mirrors
// the codes actually produced by the reactor and socket layers.
func errnoToCode(errno unix.Errno) Code {
	switch errno {
	case unix.EPERM:
		return CodeOperationNotPermitted
	case unix.ENOENT:
		return CodeNoSuchFileOrDirectory
	case unix.EINTR:
		return CodeInterrupted
	case unix.EIO:
		return CodeIOError
	case unix.EBADF:
		return CodeBadFileDescriptor
	case unix.ENOMEM:
		return CodeNotEnoughMemory
	case unix.EACCES:
		return CodePermissionDenied
	case unix.EFAULT:
		return CodeBadAddress
	case unix.EEXIST:
		return CodeFileExists
	case unix.ENOTDIR:
		return CodeNotADirectory
	case unix.EINVAL:
		return CodeInvalidArgument
	case unix.EMFILE:
		return CodeTooManyFilesOpen
	case unix.EFBIG:
		return CodeFileTooLarge
	case unix.ENOSPC:
		return CodeNoSpaceOnDevice
	case unix.EROFS:
		return CodeReadOnlyFileSystem
	case unix.EPIPE:
		return CodeBrokenPipe
	case unix.ENAMETOOLONG:
		return CodeNameTooLong
	case unix.ELOOP:
		return CodeTooManySymbolicLinkLevels
	case unix.ENOTSOCK:
		return CodeNotASocket
	case unix.EDESTADDRREQ:
		return CodeDestinationAddressRequired
	case unix.ENOPROTOOPT:
		return CodeNoProtocolOption
	case unix.EOPNOTSUPP:
		return CodeOperationNotSupported
	case unix.EADDRINUSE:
		return CodeAddressInUse
	case unix.EADDRNOTAVAIL:
		return CodeAddressNotAvailable
	case unix.EDQUOT:
		return CodeQuotaExceeded
	default:
		return CodeIOError
	}
}

// wrapErrno converts a syscall error into the "bc" category, preserving the
// original errno as the Cause so errors.Is(err, unix.ENOENT) still works.
func wrapErrno(err error) *Error {
	var errno unix.Errno
	if e, ok := err.(unix.Errno); ok {
		errno = e
	}
	return newError(errnoToCode(errno), errno.Error(), err)
}

// isTransient reports whether err is one of the transient conditions that
// the core never surfaces to callers: EAGAIN, EWOULDBLOCK, EINTR. Awaiters
// treat these as "zero bytes, try again later" rather than errors.
func isTransient(err error) bool {
	errno, ok := err.(unix.Errno)
	if !ok {
		return false
	}
	return errno == unix.EAGAIN || errno == unix.EWOULDBLOCK || errno == unix.EINTR
}

// SetupError wraps a fatal setup-time failure (poller creation, socket
// creation, bind/listen with bad inputs) per the error taxonomy's first
// category: these propagate out of the failing constructor, never retried.
type SetupError struct {
	Op    string
	Cause error
}

func (e *SetupError) Error() string { return fmt.Sprintf("bc: setup: %s: %v", e.Op, e.Cause) }
func (e *SetupError) Unwrap() error { return e.Cause }

// InvariantViolation is raised (via panic) for programmer errors the core
// does not attempt to recover from: an awaiter (Sleep, Socket I/O) or Await
// used outside a running Task. These are assertions, not recoverable
// errors. Other contract violations, such as using a closed Socket or
// awaiting one Task from two parents, are not detected.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string { return "bc: invariant violation: " + e.Message }
