package feed

// seenSet is a bounded set of recently-seen message ids with FIFO
// eviction. The transport redelivers the full message list on every
// update, so without dedup each snapshot would be scored again.
type seenSet struct {
	capacity int
	order    []string
	next     int
	set      map[string]struct{}
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &seenSet{
		capacity: capacity,
		order:    make([]string, capacity),
		set:      make(map[string]struct{}, capacity),
	}
}

// Seen records id and reports whether it was already present.
func (s *seenSet) Seen(id string) bool {
	if _, ok := s.set[id]; ok {
		return true
	}
	if evicted := s.order[s.next]; evicted != "" {
		delete(s.set, evicted)
	}
	s.order[s.next] = id
	s.next = (s.next + 1) % s.capacity
	s.set[id] = struct{}{}
	return false
}

func (s *seenSet) Len() int { return len(s.set) }
