package observe

// LoadState is the phase of an asynchronous load.
type LoadState int

const (
	Idle LoadState = iota
	Pending
	Succeeded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Resource is the result of a load: pending, succeeded with Data, or failed with Err.
type Resource[T any] struct {
	State LoadState
	Data  T
	Err   error
}

// Loading returns a pending resource that keeps the previous data visible.
func Loading[T any](prev T) Resource[T] {
	return Resource[T]{State: Pending, Data: prev}
}

// Success returns a succeeded resource.
func Success[T any](v T) Resource[T] {
	return Resource[T]{State: Succeeded, Data: v}
}

// Failure returns a failed resource that keeps the previous data visible.
func Failure[T any](prev T, err error) Resource[T] {
	return Resource[T]{State: Failed, Data: prev, Err: err}
}
