package dataset

// Snapshot hands the current Table to request handlers and accepts
// replacements from the reload path. A dedicated goroutine owns the
// pointer, so readers and the watcher never race — share memory by
// communicating instead of wrapping a mutex around a global.
type Snapshot struct {
	get chan *Table
	set chan *Table
}

// NewSnapshot starts the owning goroutine seeded with the initial table.
// The goroutine lives for the whole process, same as the server routes
// that consume it.
func NewSnapshot(initial *Table) *Snapshot {
	s := &Snapshot{
		get: make(chan *Table),
		set: make(chan *Table),
	}
	go func(current *Table) {
		for {
			select {
			case s.get <- current:
			case current = <-s.set:
			}
		}
	}(initial)
	return s
}

// Current returns the table active right now. Tables are immutable, so
// the caller can keep using the result even after a reload swaps it out.
func (s *Snapshot) Current() *Table {
	return <-s.get
}

// Replace publishes a freshly loaded table. In-flight requests keep the
// old snapshot; new requests see the replacement.
func (s *Snapshot) Replace(t *Table) {
	s.set <- t
}
