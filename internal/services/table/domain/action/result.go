package action

// Result carries either a payload or the error that replaced it. Results are
// produced by the transport and consumed exactly once by a fold.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful payload.
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the result carries a payload.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
