package imap

// Constants

// Integer counter for the failure categories a
// session or connection can report.
const (
	NoError Kind = iota
	NoResponse
	BadResponse
	UndefinedResponse
	ResponseError
	EncryptionError
	SocketError
	ConnectionTimeout
	ConfigError
	InternalError
)

// Structs

// Kind represents the integer value associated with
// one of the implemented failure categories.
type Kind int

// Error carries one classified failure including a
// human-readable description. The zero value means
// that no error occurred. Error values are meant to
// be copied around freely and compared by kind.
type Error struct {
	Kind Kind
	Text string
}

// Translator turns a human-readable error text into
// the language presented to an administrator. The
// surrounding console supplies a real translation
// function, a bare library user keeps the identity.
type Translator func(text string) string

// Functions

// String returns a stable name for a failure category.
func (k Kind) String() string {

	switch k {
	case NoError:
		return "no error"
	case NoResponse:
		return "NO response"
	case BadResponse:
		return "BAD response"
	case UndefinedResponse:
		return "undefined response"
	case ResponseError:
		return "response error"
	case EncryptionError:
		return "encryption error"
	case SocketError:
		return "socket error"
	case ConnectionTimeout:
		return "connection timeout"
	case ConfigError:
		return "configuration error"
	case InternalError:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error implements the error interface so that an
// Error value can be handed to callers expecting
// standard Go errors.
func (e Error) Error() string {

	if e.Text == "" {
		return e.Kind.String()
	}

	return e.Text
}

// IsError reports whether this value describes an
// actual failure.
func (e Error) IsError() bool {
	return e.Kind != NoError
}

// newError bundles a failure category and its
// description into an Error value.
func newError(kind Kind, text string) Error {

	return Error{
		Kind: kind,
		Text: text,
	}
}

// identity is the default Translator and returns
// the supplied text unchanged.
func identity(text string) string {
	return text
}
