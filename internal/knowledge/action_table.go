package knowledge

import (
	"errors"
	"math/rand/v2"

	"github.com/elliotchance/orderedmap/v3"
)

// ErrEmptyTable is the panic value raised when a random entry is requested
// from a table with no entries.
var ErrEmptyTable = errors.New("knowledge: random entry requested from empty table")

// ActionTable maps action ids to score entries within one context.
type ActionTable struct {
	entries *orderedmap.OrderedMap[ActionID, ScoreEntry]
}

// NewActionTable creates an empty action table.
func NewActionTable() *ActionTable {
	return &ActionTable{
		entries: orderedmap.NewOrderedMap[ActionID, ScoreEntry](),
	}
}

// Get returns the entry stored for id, or a DefaultScore entry if absent.
// Get does not insert.
func (t *ActionTable) Get(id ActionID) ScoreEntry {
	if entry, ok := t.entries.Get(id); ok {
		return entry
	}
	return NewScoreEntry(DefaultScore)
}

// Set inserts or overwrites the entry for id. Overwriting keeps the key's
// original position in the enumeration order.
func (t *ActionTable) Set(id ActionID, entry ScoreEntry) {
	t.entries.Set(id, entry)
}

// ContainsKey reports whether id has a stored entry.
func (t *ActionTable) ContainsKey(id ActionID) bool {
	return t.entries.Has(id)
}

// Len returns the number of stored entries.
func (t *ActionTable) Len() int {
	return t.entries.Len()
}

// Keys returns the action ids in enumeration order.
func (t *ActionTable) Keys() []ActionID {
	keys := make([]ActionID, 0, t.entries.Len())
	for el := t.entries.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

// Range calls fn for every entry in enumeration order until fn returns false.
func (t *ActionTable) Range(fn func(ActionID, ScoreEntry) bool) {
	for el := t.entries.Front(); el != nil; el = el.Next() {
		if !fn(el.Key, el.Value) {
			return
		}
	}
}

// Argmax returns the entry with the highest score. The first entry in
// enumeration order is the initial candidate and is only replaced by a
// strictly greater score. ok is false for an empty table.
func (t *ActionTable) Argmax() (id ActionID, entry ScoreEntry, ok bool) {
	for el := t.entries.Front(); el != nil; el = el.Next() {
		if !ok || el.Value.Score() > entry.Score() {
			id, entry, ok = el.Key, el.Value, true
		}
	}
	return id, entry, ok
}

// RandomEntry picks a stored entry uniformly at random.
// It panics with ErrEmptyTable when the table is empty.
func (t *ActionTable) RandomEntry(rng *rand.Rand) (ActionID, ScoreEntry) {
	n := t.entries.Len()
	if n == 0 {
		panic(ErrEmptyTable)
	}
	idx := rng.IntN(n)
	el := t.entries.Front()
	for i := 0; i < idx; i++ {
		el = el.Next()
	}
	return el.Key, el.Value
}

// SetAllValuesTo replaces every stored entry with a fresh entry holding
// score. Tag dictionaries are cleared.
func (t *ActionTable) SetAllValuesTo(score float64) {
	for _, id := range t.Keys() {
		t.entries.Set(id, NewScoreEntry(score))
	}
}
