package prediction

import "fmt"

// Kind classifies prediction failures.
type Kind string

const (
	// KindServer is a non-2xx answer from the classifier.
	KindServer Kind = "SERVER_ERROR"
	// KindTransport means the classifier could not be reached at all.
	KindTransport Kind = "TRANSPORT_ERROR"
	// KindMalformed is a 2xx answer whose body does not match the schema.
	KindMalformed Kind = "MALFORMED_RESPONSE"
)

// InvalidResponseMessage is shown for every schema violation.
const InvalidResponseMessage = "invalid server response"

// Error is a prediction failure. Message is safe to show to the user.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newServerError(code int, text string) *Error {
	return &Error{
		Kind:       KindServer,
		Message:    fmt.Sprintf("server error: %d %s", code, text),
		StatusCode: code,
	}
}

func newTransportError(baseURL string, cause error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf("cannot connect to server at %s; check that it is running", baseURL),
		Cause:   cause,
	}
}

func newMalformedError(code int, cause error) *Error {
	return &Error{
		Kind:       KindMalformed,
		Message:    InvalidResponseMessage,
		StatusCode: code,
		Cause:      cause,
	}
}
