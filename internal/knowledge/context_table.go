package knowledge

import (
	"math/rand/v2"

	"github.com/elliotchance/orderedmap/v3"
)

// ContextTable maps context ids to action tables within one error.
type ContextTable struct {
	contexts *orderedmap.OrderedMap[ContextID, *ActionTable]
}

// NewContextTable creates an empty context table.
func NewContextTable() *ContextTable {
	return &ContextTable{
		contexts: orderedmap.NewOrderedMap[ContextID, *ActionTable](),
	}
}

// Get returns the entry stored for (contextID, actionID), or a DefaultScore
// entry if either level is absent.
func (t *ContextTable) Get(contextID ContextID, actionID ActionID) ScoreEntry {
	if actions, ok := t.contexts.Get(contextID); ok {
		return actions.Get(actionID)
	}
	return NewScoreEntry(DefaultScore)
}

// Set inserts or overwrites the entry, creating the context if needed.
func (t *ContextTable) Set(contextID ContextID, actionID ActionID, entry ScoreEntry) {
	actions, ok := t.contexts.Get(contextID)
	if !ok {
		actions = NewActionTable()
		t.contexts.Set(contextID, actions)
	}
	actions.Set(actionID, entry)
}

// ContainsContext reports whether contextID has at least one action.
func (t *ContextTable) ContainsContext(contextID ContextID) bool {
	return t.contexts.Has(contextID)
}

// ContainsKey reports whether (contextID, actionID) has a stored entry.
func (t *ContextTable) ContainsKey(contextID ContextID, actionID ActionID) bool {
	actions, ok := t.contexts.Get(contextID)
	return ok && actions.ContainsKey(actionID)
}

// ActionTable returns the action table for contextID.
func (t *ContextTable) ActionTable(contextID ContextID) (*ActionTable, bool) {
	return t.contexts.Get(contextID)
}

// Len returns the number of contexts.
func (t *ContextTable) Len() int {
	return t.contexts.Len()
}

// NumActions returns the number of entries across all contexts.
func (t *ContextTable) NumActions() int {
	n := 0
	for el := t.contexts.Front(); el != nil; el = el.Next() {
		n += el.Value.Len()
	}
	return n
}

// Keys returns the context ids in enumeration order.
func (t *ContextTable) Keys() []ContextID {
	keys := make([]ContextID, 0, t.contexts.Len())
	for el := t.contexts.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

// Range calls fn for every entry, contexts first then actions, in
// enumeration order until fn returns false.
func (t *ContextTable) Range(fn func(ContextID, ActionID, ScoreEntry) bool) {
	for el := t.contexts.Front(); el != nil; el = el.Next() {
		cont := true
		el.Value.Range(func(actionID ActionID, entry ScoreEntry) bool {
			cont = fn(el.Key, actionID, entry)
			return cont
		})
		if !cont {
			return
		}
	}
}

// Argmax compares the winner of every context's ActionTable.Argmax and
// returns the overall best location. Ties keep the earlier context.
func (t *ContextTable) Argmax() (contextID ContextID, actionID ActionID, entry ScoreEntry, ok bool) {
	for el := t.contexts.Front(); el != nil; el = el.Next() {
		id, candidate, found := el.Value.Argmax()
		if !found {
			continue
		}
		if !ok || candidate.Score() > entry.Score() {
			contextID, actionID, entry, ok = el.Key, id, candidate, true
		}
	}
	return contextID, actionID, entry, ok
}

// RandomEntry picks a context uniformly, then an action within it.
// It panics with ErrEmptyTable when the table is empty.
func (t *ContextTable) RandomEntry(rng *rand.Rand) (ContextID, ActionID, ScoreEntry) {
	n := t.contexts.Len()
	if n == 0 {
		panic(ErrEmptyTable)
	}
	idx := rng.IntN(n)
	el := t.contexts.Front()
	for i := 0; i < idx; i++ {
		el = el.Next()
	}
	actionID, entry := el.Value.RandomEntry(rng)
	return el.Key, actionID, entry
}

// SetAllValuesTo resets every entry in every context to score.
func (t *ContextTable) SetAllValuesTo(score float64) {
	for el := t.contexts.Front(); el != nil; el = el.Next() {
		el.Value.SetAllValuesTo(score)
	}
}

// influence blends the preferred entries recorded for code into t. Only
// triples present in t and tags listed in active are touched.
func (t *ContextTable) influence(code ErrorCode, preferred map[entryKey]ScoreEntry, active map[TagID]struct{}) int {
	blended := 0
	for el := t.contexts.Front(); el != nil; el = el.Next() {
		actions := el.Value
		for _, actionID := range actions.Keys() {
			p, ok := preferred[entryKey{code: code, context: el.Key, action: actionID}]
			if !ok {
				continue
			}
			entry := actions.Get(actionID)
			for _, tag := range p.TagIDs() {
				if _, on := active[tag]; !on {
					continue
				}
				value, _ := p.Tag(tag)
				entry = entry.WithScoreDelta(value).WithTagIncrement(tag, value)
			}
			actions.Set(actionID, entry)
			blended++
		}
	}
	return blended
}
