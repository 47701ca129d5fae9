package stream

// Status is the lifecycle of an asynchronously produced value.
type Status int

const (
	StatusNotStarted Status = iota
	StatusPending
	StatusFailure
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusPending:
		return "pending"
	case StatusFailure:
		return "failure"
	case StatusSuccess:
		return "success"
	}
	return "unknown"
}

// Result is NotStarted, Pending, Failure(Err) or Success(Value).
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

// NotStarted returns a result for work that has not been requested.
func NotStarted[T any]() Result[T] {
	return Result[T]{Status: StatusNotStarted}
}

// Pending returns a result for work in flight.
func Pending[T any]() Result[T] {
	return Result[T]{Status: StatusPending}
}

// Fail returns a failed result.
func Fail[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailure, Err: err}
}

// Ok returns a successful result.
func Ok[T any](v T) Result[T] {
	return Result[T]{Status: StatusSuccess, Value: v}
}

// IsSuccess reports whether r carries a value.
func (r Result[T]) IsSuccess() bool { return r.Status == StatusSuccess }

// IsFailure reports whether r carries an error.
func (r Result[T]) IsFailure() bool { return r.Status == StatusFailure }

// IsPending reports whether r is in flight.
func (r Result[T]) IsPending() bool { return r.Status == StatusPending }

// ResultEqual compares two results of a comparable type. Errors compare by
// identity.
func ResultEqual[T comparable](a, b Result[T]) bool {
	return a.Status == b.Status && a.Value == b.Value && a.Err == b.Err
}
