package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity caps how many events the arena holds, processed ones
// included. Zero or negative leaves it unbounded.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		q.capacity = capacity
	}
}
