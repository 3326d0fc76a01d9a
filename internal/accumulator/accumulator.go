// Package accumulator holds per-document running scores for one query evaluation.
package accumulator

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Accumulator maps document ids to running scores. A document never incremented is
// absent and counts as 0. It is not safe for concurrent use.
type Accumulator interface {
	// Reset clears every score.
	Reset()
	// IncScore adds delta to docID, starting from 0 when absent.
	IncScore(docID int, delta float64)
	// FindScore returns the score of docID and whether it was ever incremented since Reset.
	FindScore(docID int) (float64, bool)
	// Len returns the number of documents present.
	Len() int
}

// Kind selects an Accumulator implementation.
type Kind string

const (
	KindAuto  Kind = "auto"
	KindArray Kind = "array"
	KindMap   Kind = "map"
)

// ParseKind validates an accumulator name. The empty string means KindAuto.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAuto:
		return KindAuto, nil
	case KindArray, KindMap:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown accumulator %q (want auto, array or map)", s)
}

// New returns an accumulator for document ids in [1, docCount].
func New(kind Kind, docCount int) Accumulator {
	if kind == KindMap {
		return NewMap()
	}
	return NewArray(docCount)
}

// Array is a dense accumulator indexed by document id. Touched ids are tracked in a
// bitmap so Reset costs time proportional to the documents actually scored.
type Array struct {
	scores  []float64
	touched *roaring.Bitmap
}

// NewArray creates a dense accumulator for document ids in [1, docCount].
func NewArray(docCount int) *Array {
	return &Array{
		scores:  make([]float64, docCount+1),
		touched: roaring.New(),
	}
}

func (a *Array) Reset() {
	it := a.touched.Iterator()
	for it.HasNext() {
		a.scores[it.Next()] = 0
	}
	a.touched.Clear()
}

// IncScore panics when docID is outside [0, docCount].
func (a *Array) IncScore(docID int, delta float64) {
	a.scores[docID] += delta
	a.touched.Add(uint32(docID))
}

func (a *Array) FindScore(docID int) (float64, bool) {
	if docID < 0 || docID >= len(a.scores) || !a.touched.Contains(uint32(docID)) {
		return 0, false
	}
	return a.scores[docID], true
}

func (a *Array) Len() int {
	return int(a.touched.GetCardinality())
}

// Map is a sparse accumulator for queries that match few documents.
type Map struct {
	scores map[int]float64
}

// NewMap creates an empty sparse accumulator.
func NewMap() *Map {
	return &Map{scores: make(map[int]float64)}
}

func (m *Map) Reset() {
	clear(m.scores)
}

func (m *Map) IncScore(docID int, delta float64) {
	m.scores[docID] += delta
}

func (m *Map) FindScore(docID int) (float64, bool) {
	s, ok := m.scores[docID]
	return s, ok
}

func (m *Map) Len() int {
	return len(m.scores)
}
