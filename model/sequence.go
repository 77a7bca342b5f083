package model

import (
	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/ident"
)

// Sequence is named uniquely within its grain.
type Sequence struct {
	grain     *Grain
	name      string
	start     int64
	increment int64
	min       *int64
	max       *int64
	cycle     bool
}

// NewSequence constructs and registers a sequence on grain.
func NewSequence(grain *Grain, name string, start, increment int64, min, max *int64, cycle bool) (*Sequence, error) {
	if grain.finalized {
		return nil, celesta.New(celesta.KindIllegalState, "grain %q is finalized, cannot add sequence %q", grain.name, name)
	}
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := grain.sequences[name]; exists {
		return nil, celesta.New(celesta.KindIllegalState, "sequence %q already exists in grain %q", name, grain.name)
	}
	s := &Sequence{
		grain:     grain,
		name:      name,
		start:     start,
		increment: increment,
		min:       min,
		max:       max,
		cycle:     cycle,
	}
	grain.sequences[name] = s
	grain.sequenceOrder = append(grain.sequenceOrder, name)
	return s, nil
}

func (s *Sequence) Grain() *Grain        { return s.grain }
func (s *Sequence) Name() string         { return s.name }
func (s *Sequence) ElementClass() string { return ElementClassSequence }
func (s *Sequence) Start() int64         { return s.start }
func (s *Sequence) Increment() int64     { return s.increment }
func (s *Sequence) Min() *int64          { return s.min }
func (s *Sequence) Max() *int64          { return s.max }
func (s *Sequence) Cycle() bool          { return s.cycle }

// GetReferences: a sequence never references another element.
func (s *Sequence) GetReferences() []GrainElementReference { return nil }
