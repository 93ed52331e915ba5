package actions

// pendingStack holds in-flight records, innermost last. Callers reach the
// top record only through update and pop.
type pendingStack struct {
	items []*ActionReport
}

func (s *pendingStack) push(r *ActionReport) {
	s.items = append(s.items, r)
}

func (s *pendingStack) len() int {
	return len(s.items)
}

// update applies fn to the top record. It returns false on an empty stack.
func (s *pendingStack) update(fn func(r *ActionReport)) bool {
	if len(s.items) == 0 {
		return false
	}
	fn(s.items[len(s.items)-1])
	return true
}

func (s *pendingStack) pop() (*ActionReport, bool) {
	n := len(s.items)
	if n == 0 {
		return nil, false
	}
	r := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	return r, true
}

// completedLog is the append-only, insertion-ordered output of a run.
type completedLog struct {
	records []ActionReport
}

func (l *completedLog) append(r ActionReport) {
	l.records = append(l.records, r)
}

func (l *completedLog) len() int {
	return len(l.records)
}

// snapshot returns a copy that callers may modify freely.
func (l *completedLog) snapshot() []ActionReport {
	out := make([]ActionReport, len(l.records))
	copy(out, l.records)
	return out
}
