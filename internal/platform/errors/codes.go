// Package errors provides the data error taxonomy shared by the transport,
// the codec boundary and the state reducer.
package errors

// Kind groups error codes by the layer that produced them.
type Kind string

const (
	// KindHTTP covers failures that end the session view.
	KindHTTP Kind = "HTTP"
	// KindWebSocket covers realtime channel failures that are recoverable.
	KindWebSocket Kind = "WEBSOCKET"
	// KindLocal covers collaborator state (credentials, local caches).
	KindLocal Kind = "LOCAL"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// HTTP errors
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeServerError   Code = "SERVER_ERROR"
	CodeNoInternet    Code = "NO_INTERNET"
	CodeSerialization Code = "SERIALIZATION"

	// Local errors
	CodeNoData Code = "NO_DATA"
)

// Terminal reports whether errors of this kind end the session view.
func (k Kind) Terminal() bool {
	return k == KindHTTP
}

// valid reports whether code belongs to kind.
func (k Kind) valid(code Code) bool {
	switch k {
	case KindHTTP:
		switch code {
		case CodeUnauthorized, CodeForbidden, CodeNotFound, CodeServerError,
			CodeNoInternet, CodeSerialization, CodeUnknown:
			return true
		}
	case KindWebSocket:
		return code == CodeUnknown || code == CodeSerialization
	case KindLocal:
		return code == CodeNoData || code == CodeUnknown
	}
	return false
}

// MessageKey returns the catalog key used to render user-facing text.
func MessageKey(kind Kind, code Code) string {
	return string(kind) + "_" + string(code)
}
