package dbinfo

import "github.com/celesta-db/celesta/model"

// DbSequenceInfo is the live shape of one sequence.
type DbSequenceInfo struct {
	Name      string
	Start     int64
	Increment int64
	Min       *int64
	Max       *int64
	Cycle     bool
}

// Reflects reports whether the live sequence matches seq's declared
// parameters exactly.
func (s DbSequenceInfo) Reflects(seq *model.Sequence) bool {
	return s.Start == seq.Start() &&
		s.Increment == seq.Increment() &&
		int64PtrEqual(s.Min, seq.Min()) &&
		int64PtrEqual(s.Max, seq.Max()) &&
		s.Cycle == seq.Cycle()
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
