package photo

import "errors"

var (
	// shown to users as is
	ErrInvalidResponse = errors.New("Invalid response from server")
	ErrAPI             = errors.New("photo api error")
	ErrNetwork         = errors.New("network error")

	errMissingHost = errors.New("missing scheme or host")
)

type ErrorKind int

const (
	KindInvalidResponse ErrorKind = iota + 1
	KindAPIError
	KindNetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidResponse:
		return "invalid_response"
	case KindAPIError:
		return "api_error"
	case KindNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Error is the single terminal failure of a RandomImage call.
// Message is what the user gets to see.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPIError:
		return e.Message
	case KindNetworkError:
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return ErrNetwork.Error()
	default:
		if e.Message != "" {
			return e.Message
		}
		return ErrInvalidResponse.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	case ErrAPI:
		return e.Kind == KindAPIError
	case ErrNetwork:
		return e.Kind == KindNetworkError
	}
	return false
}

func InvalidResponse(cause error) *Error {
	return &Error{Kind: KindInvalidResponse, Message: ErrInvalidResponse.Error(), Cause: cause}
}

func APIError(message string) *Error {
	return &Error{Kind: KindAPIError, Message: message}
}

func NetworkError(cause error) *Error {
	return &Error{Kind: KindNetworkError, Cause: cause}
}

// KindOf reports the kind of a photo error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
