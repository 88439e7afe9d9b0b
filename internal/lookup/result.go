package lookup

// BestEffort is the outcome of a lookup whose failure is tolerated: a usable value (possibly a default), plus the error that forced the fallback, if any.
type BestEffort[T any] struct {
	Value   T
	Warning error
}

// Fallback reports whether Value is a default rather than a looked-up result.
func (b BestEffort[T]) Fallback() bool {
	return b.Warning != nil
}

// Attempt runs fn; on error the result carries def and the error as a warning.
func Attempt[T any](def T, fn func() (T, error)) BestEffort[T] {
	v, err := fn()
	if err != nil {
		return BestEffort[T]{Value: def, Warning: err}
	}
	return BestEffort[T]{Value: v}
}
