package collect

import "sync"

// Kind tags a collection result.
type Kind string

const (
	// KindStack is a collected call stack.
	KindStack Kind = "stack"
	// KindSnapshot is a collected local-variable snapshot.
	KindSnapshot Kind = "snapshot"
	// KindException is an assembled exception detail.
	KindException Kind = "exception"
)

// ContextItem is the tagged result envelope delivered once per collection
// request. Exactly one payload field is populated, matching Kind.
type ContextItem struct {
	// Kind identifies the payload.
	Kind Kind `json:"kind"`

	// Success reports whether the collection completed without a backend
	// failure. Budget truncation is not a failure.
	Success bool `json:"success"`

	// RequestID correlates the item with the request that produced it.
	RequestID string `json:"requestId,omitempty"`

	// Stack is the payload for KindStack.
	Stack []StackItem `json:"stack,omitempty"`

	// Snapshot is the payload for KindSnapshot.
	Snapshot []SnapshotItem `json:"snapshot,omitempty"`

	// Exception is the payload for KindException.
	Exception *ExceptionDetail `json:"exception,omitempty"`
}

// latestStore is the single-slot-per-kind cache of collection results.
//
// Slots are replaced wholesale, never merged, so readers always see a
// complete, self-consistent result. Every collection takes a generation
// token when it starts and may only write the slot if no newer collection
// has written it since - a stale in-flight collection can never overwrite a
// newer result.
type latestStore struct {
	mu sync.RWMutex

	// Last issued token per kind.
	stackGen     uint64
	snapshotGen  uint64
	exceptionGen uint64

	// Token that wrote the current slot value.
	stackCur     uint64
	snapshotCur  uint64
	exceptionCur uint64

	stack     []StackItem
	snapshot  []SnapshotItem
	exception *ExceptionDetail
}

// begin issues the next generation token for a kind.
func (s *latestStore) begin(kind Kind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindStack:
		s.stackGen++
		return s.stackGen
	case KindSnapshot:
		s.snapshotGen++
		return s.snapshotGen
	case KindException:
		s.exceptionGen++
		return s.exceptionGen
	default:
		return 0
	}
}

// putStack stores a stack result unless a newer collection already wrote the
// slot. It reports whether the slot was written.
func (s *latestStore) putStack(gen uint64, items []StackItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.stackCur {
		return false
	}
	s.stackCur = gen
	s.stack = items
	return true
}

// putSnapshot stores a snapshot result unless a newer collection already
// wrote the slot.
func (s *latestStore) putSnapshot(gen uint64, items []SnapshotItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.snapshotCur {
		return false
	}
	s.snapshotCur = gen
	s.snapshot = items
	return true
}

// putException stores an exception result unless a newer collection already
// wrote the slot.
func (s *latestStore) putException(gen uint64, detail ExceptionDetail) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.exceptionCur {
		return false
	}
	s.exceptionCur = gen
	s.exception = &detail
	return true
}

// latestStack returns an independent copy of the stack slot.
func (s *latestStore) latestStack() []StackItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stack == nil {
		return nil
	}
	result := make([]StackItem, len(s.stack))
	copy(result, s.stack)
	return result
}

// latestSnapshot returns an independent deep copy of the snapshot slot.
func (s *latestStore) latestSnapshot() []SnapshotItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyItems(s.snapshot)
}

// latestException returns a copy of the exception slot.
func (s *latestStore) latestException() (ExceptionDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.exception == nil {
		return ExceptionDetail{}, false
	}
	return *s.exception, true
}

// clear empties all three slots and invalidates every collection currently
// in flight, so late writes from before the clear are rejected.
func (s *latestStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stack = nil
	s.snapshot = nil
	s.exception = nil
	s.stackCur = s.stackGen
	s.snapshotCur = s.snapshotGen
	s.exceptionCur = s.exceptionGen
}
