package ingest

// storeError wraps a failed batch insert so that it aborts the feed.
type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }

func (e storeError) Unwrap() error { return e.err }

// batcher buffers rows and hands them to insert in groups of size.
type batcher[T any] struct {
	size   int
	rows   []T
	insert func([]T) error
}

func newBatcher[T any](size int, insert func([]T) error) *batcher[T] {
	return &batcher[T]{size: size, rows: make([]T, 0, size), insert: insert}
}

func (b *batcher[T]) add(row T) error {
	b.rows = append(b.rows, row)
	if len(b.rows) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batcher[T]) flush() error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := b.insert(b.rows); err != nil {
		return storeError{err: err}
	}
	b.rows = b.rows[:0]
	return nil
}
