package dbapi

import "fmt"

// Kind classifies an error within the client error hierarchy:
//
//	Warning
//	Error
//	├── InterfaceError
//	└── DatabaseError
//	    ├── DataError
//	    ├── OperationalError
//	    ├── IntegrityError
//	    ├── InternalError
//	    ├── ProgrammingError
//	    └── NotSupportedError
//
// A Kind is itself an error, so the Err* sentinels below can be used as
// errors.Is targets to catch a whole category.
type Kind int

const (
	KindWarning Kind = iota
	KindError
	KindInterfaceError
	KindDatabaseError
	KindDataError
	KindOperationalError
	KindIntegrityError
	KindInternalError
	KindProgrammingError
	KindNotSupportedError
)

// Sentinels for errors.Is.
var (
	ErrWarning           error = KindWarning
	ErrError             error = KindError
	ErrInterfaceError    error = KindInterfaceError
	ErrDatabaseError     error = KindDatabaseError
	ErrDataError         error = KindDataError
	ErrOperationalError  error = KindOperationalError
	ErrIntegrityError    error = KindIntegrityError
	ErrInternalError     error = KindInternalError
	ErrProgrammingError  error = KindProgrammingError
	ErrNotSupportedError error = KindNotSupportedError
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "Warning"
	case KindError:
		return "Error"
	case KindInterfaceError:
		return "InterfaceError"
	case KindDatabaseError:
		return "DatabaseError"
	case KindDataError:
		return "DataError"
	case KindOperationalError:
		return "OperationalError"
	case KindIntegrityError:
		return "IntegrityError"
	case KindInternalError:
		return "InternalError"
	case KindProgrammingError:
		return "ProgrammingError"
	case KindNotSupportedError:
		return "NotSupportedError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) Error() string {
	return k.String()
}

// Parent returns the enclosing category. Warning and Error are roots and
// return themselves.
func (k Kind) Parent() Kind {
	switch k {
	case KindInterfaceError, KindDatabaseError:
		return KindError
	case KindDataError, KindOperationalError, KindIntegrityError,
		KindInternalError, KindProgrammingError, KindNotSupportedError:
		return KindDatabaseError
	default:
		return k
	}
}

// IsA reports whether k is category or one of its descendants.
func (k Kind) IsA(category Kind) bool {
	for {
		if k == category {
			return true
		}
		parent := k.Parent()
		if parent == k {
			return false
		}
		k = parent
	}
}

// Is lets errors.Is(KindDataError, ErrDatabaseError) match by category.
func (k Kind) Is(target error) bool {
	category, ok := target.(Kind)
	return ok && k.IsA(category)
}

// Error is the error type returned by Connection and Cursor operations.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, typically a *service.Error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the Err* sentinels by category.
func (e *Error) Is(target error) bool {
	return e.Kind.Is(target)
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
