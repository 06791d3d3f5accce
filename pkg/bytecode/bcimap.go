package bytecode

import "sort"

// Bci is a byte-code index: a byte offset from the start of a method's code
// array.
type Bci uint32

// BciMap is a sorted Bci -> T map supporting ordered iteration, point lookup
// and offset navigation. Entries are stored in a bci-sorted slice rather
// than a Go map so that iteration order and offset navigation are both
// O(log n) without an auxiliary sorted key list.
type BciMap[T any] struct {
	bcis   []Bci
	values []T
}

// NewBciMap creates an empty BciMap.
func NewBciMap[T any]() *BciMap[T] {
	return &BciMap[T]{}
}

// Iter is a position in a BciMap. The zero Iter is not valid; use Begin/End.
type Iter struct {
	idx int
}

// End returns the end sentinel: one past the last element.
func (m *BciMap[T]) End() Iter { return Iter{idx: len(m.bcis)} }

// Begin returns the iterator to the first (lowest-bci) element, or End() if empty.
func (m *BciMap[T]) Begin() Iter { return Iter{idx: 0} }

// Len returns the number of entries.
func (m *BciMap[T]) Len() int { return len(m.bcis) }

// Insert adds a new entry. Returns false without modifying the map if Bci is
// already present.
func (m *BciMap[T]) Insert(bci Bci, v T) bool {
	i := sort.Search(len(m.bcis), func(i int) bool { return m.bcis[i] >= bci })
	if i < len(m.bcis) && m.bcis[i] == bci {
		return false
	}
	m.bcis = append(m.bcis, 0)
	m.values = append(m.values, v)
	copy(m.bcis[i+1:], m.bcis[i:])
	copy(m.values[i+1:], m.values[i:])
	m.bcis[i] = bci
	m.values[i] = v
	return true
}

// FindAtBci returns the iterator to the entry at exactly Bci, or End() if none.
func (m *BciMap[T]) FindAtBci(bci Bci) Iter {
	i := sort.Search(len(m.bcis), func(i int) bool { return m.bcis[i] >= bci })
	if i < len(m.bcis) && m.bcis[i] == bci {
		return Iter{idx: i}
	}
	return m.End()
}

// Bci returns the bci of it. Caller must ensure it is not End().
func (m *BciMap[T]) Bci(it Iter) Bci { return m.bcis[it.idx] }

// Value returns the value at it. Caller must ensure it is not End().
func (m *BciMap[T]) Value(it Iter) T { return m.values[it.idx] }

// Next advances it by one position.
func (m *BciMap[T]) Next(it Iter) Iter { return Iter{idx: it.idx + 1} }

// OffsetTo returns the iterator whose bci is bci(it)+off, or End() if no
// such entry exists. it must not be End(). off == 0 returns it unchanged.
func (m *BciMap[T]) OffsetTo(it Iter, off int32) Iter {
	if it.idx >= len(m.bcis) {
		return m.End()
	}
	if off == 0 {
		return it
	}
	target := int64(m.bcis[it.idx]) + int64(off)
	if target < 0 {
		return m.End()
	}
	return m.FindAtBci(Bci(target))
}

// All returns the entries in ascending-bci order, for convenient iteration.
func (m *BciMap[T]) All() []struct {
	Bci   Bci
	Value T
} {
	out := make([]struct {
		Bci   Bci
		Value T
	}, len(m.bcis))
	for i := range m.bcis {
		out[i].Bci = m.bcis[i]
		out[i].Value = m.values[i]
	}
	return out
}
