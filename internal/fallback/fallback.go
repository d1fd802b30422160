// Package fallback centralises the "serve mock data when the live call fails" decision.
package fallback

// Result holds either a live value or a substitute produced after a failure.
// Err keeps the live failure so callers can log or report it.
type Result[T any] struct {
	Value    T
	Err      error
	Fallback bool
}

// Or returns value when err is nil, otherwise the output of fallback with
// Fallback set and the original error retained.
func Or[T any](value T, err error, fallback func() T) Result[T] {
	if err == nil {
		return Result[T]{Value: value}
	}
	return Result[T]{Value: fallback(), Err: err, Fallback: true}
}

// Try runs fn and applies Or to its outcome.
func Try[T any](fn func() (T, error), fallback func() T) Result[T] {
	v, err := fn()
	return Or(v, err, fallback)
}
