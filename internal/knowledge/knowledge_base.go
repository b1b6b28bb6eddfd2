package knowledge

import (
	"math/rand/v2"
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	"go.uber.org/zap"
)

// Location addresses an action inside the table of one error code.
type Location struct {
	Context ContextID
	Action  ActionID
}

// Stats summarises the size of a KnowledgeBase.
type Stats struct {
	Errors   int
	Contexts int
	Actions  int
}

// KnowledgeBase maps error codes to context tables. It is the only state of
// the learning loop that survives across training runs.
type KnowledgeBase struct {
	mu     sync.RWMutex
	errors *orderedmap.OrderedMap[ErrorCode, *ContextTable]
	rng    *rand.Rand
	logger *zap.Logger
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithLogger sets the logger used for load/save diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(kb *KnowledgeBase) {
		if logger != nil {
			kb.logger = logger
		}
	}
}

// WithRand sets the random source used by RandomActionLocation.
func WithRand(rng *rand.Rand) Option {
	return func(kb *KnowledgeBase) {
		if rng != nil {
			kb.rng = rng
		}
	}
}

// New creates an empty KnowledgeBase.
func New(opts ...Option) *KnowledgeBase {
	kb := &KnowledgeBase{
		errors: orderedmap.NewOrderedMap[ErrorCode, *ContextTable](),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// Get returns the entry for the triple, or a DefaultScore entry if absent.
func (kb *KnowledgeBase) Get(errorCode ErrorCode, contextID ContextID, actionID ActionID) ScoreEntry {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if contexts, ok := kb.errors.Get(errorCode); ok {
		return contexts.Get(contextID, actionID)
	}
	return NewScoreEntry(DefaultScore)
}

// Set inserts or overwrites the entry for the triple, creating missing
// levels.
func (kb *KnowledgeBase) Set(errorCode ErrorCode, contextID ContextID, actionID ActionID, entry ScoreEntry) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	kb.setLocked(errorCode, contextID, actionID, entry)
}

// Update applies fn to the current entry for the triple (a DefaultScore
// entry if absent) and stores the result atomically. It returns the stored
// entry.
func (kb *KnowledgeBase) Update(errorCode ErrorCode, contextID ContextID, actionID ActionID, fn func(ScoreEntry) ScoreEntry) ScoreEntry {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	current := NewScoreEntry(DefaultScore)
	if contexts, ok := kb.errors.Get(errorCode); ok {
		current = contexts.Get(contextID, actionID)
	}
	updated := fn(current)
	kb.setLocked(errorCode, contextID, actionID, updated)
	return updated
}

func (kb *KnowledgeBase) setLocked(errorCode ErrorCode, contextID ContextID, actionID ActionID, entry ScoreEntry) {
	contexts, ok := kb.errors.Get(errorCode)
	if !ok {
		contexts = NewContextTable()
		kb.errors.Set(errorCode, contexts)
	}
	contexts.Set(contextID, actionID, entry)
}

// ContainsError reports whether errorCode has any stored entry.
func (kb *KnowledgeBase) ContainsError(errorCode ErrorCode) bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	return kb.errors.Has(errorCode)
}

// ContainsContext reports whether (errorCode, contextID) has any stored
// entry.
func (kb *KnowledgeBase) ContainsContext(errorCode ErrorCode, contextID ContextID) bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	contexts, ok := kb.errors.Get(errorCode)
	return ok && contexts.ContainsContext(contextID)
}

// ContainsKey reports whether the triple has a stored entry.
func (kb *KnowledgeBase) ContainsKey(errorCode ErrorCode, contextID ContextID, actionID ActionID) bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	contexts, ok := kb.errors.Get(errorCode)
	return ok && contexts.ContainsKey(contextID, actionID)
}

// ErrorCodes returns the known error codes in enumeration order.
func (kb *KnowledgeBase) ErrorCodes() []ErrorCode {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	codes := make([]ErrorCode, 0, kb.errors.Len())
	for el := kb.errors.Front(); el != nil; el = el.Next() {
		codes = append(codes, el.Key)
	}
	return codes
}

// NumContexts returns the number of contexts known for errorCode.
func (kb *KnowledgeBase) NumContexts(errorCode ErrorCode) int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if contexts, ok := kb.errors.Get(errorCode); ok {
		return contexts.Len()
	}
	return 0
}

// Stats counts errors, contexts and actions.
func (kb *KnowledgeBase) Stats() Stats {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	return kb.statsLocked()
}

func (kb *KnowledgeBase) statsLocked() Stats {
	var s Stats
	for el := kb.errors.Front(); el != nil; el = el.Next() {
		s.Errors++
		s.Contexts += el.Value.Len()
		s.Actions += el.Value.NumActions()
	}
	return s
}

// Range calls fn for every stored triple in enumeration order until fn
// returns false. fn must not call back into kb.
func (kb *KnowledgeBase) Range(fn func(ErrorCode, ContextID, ActionID, ScoreEntry) bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	for el := kb.errors.Front(); el != nil; el = el.Next() {
		cont := true
		el.Value.Range(func(contextID ContextID, actionID ActionID, entry ScoreEntry) bool {
			cont = fn(el.Key, contextID, actionID, entry)
			return cont
		})
		if !cont {
			return
		}
	}
}

// OptimalActionLocation returns the best scored action for errorCode across
// all of its contexts. ok is false when the error code is unknown.
func (kb *KnowledgeBase) OptimalActionLocation(errorCode ErrorCode) (loc Location, ok bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	contexts, found := kb.errors.Get(errorCode)
	if !found {
		return Location{}, false
	}
	contextID, actionID, _, ok := contexts.Argmax()
	return Location{Context: contextID, Action: actionID}, ok
}

// RandomActionLocation picks a random context of errorCode and a random
// action inside it. It panics with ErrEmptyTable when errorCode is unknown.
func (kb *KnowledgeBase) RandomActionLocation(errorCode ErrorCode) (Location, ScoreEntry) {
	// Write lock: the random source is not safe for concurrent use.
	kb.mu.Lock()
	defer kb.mu.Unlock()

	contexts, ok := kb.errors.Get(errorCode)
	if !ok {
		panic(ErrEmptyTable)
	}
	contextID, actionID, entry := contexts.RandomEntry(kb.rng)
	return Location{Context: contextID, Action: actionID}, entry
}

// SetAllValuesTo resets every stored entry to score and clears its tags.
func (kb *KnowledgeBase) SetAllValuesTo(score float64) {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for el := kb.errors.Front(); el != nil; el = el.Next() {
		el.Value.SetAllValuesTo(score)
	}
}

// InfluenceWeightsByPreferredScores blends tag values recorded in
// preferenceScores into kb. For every triple already present in kb that is
// also present in preferenceScores, each tag of the preferred entry that is
// listed in activeTags adds its value to kb's score and accumulates into
// kb's tag dictionary. Triples missing from kb are never created. It returns
// the number of entries changed.
func (kb *KnowledgeBase) InfluenceWeightsByPreferredScores(preferenceScores *KnowledgeBase, activeTags []TagID) int {
	if preferenceScores == nil || preferenceScores == kb || len(activeTags) == 0 {
		return 0
	}
	active := make(map[TagID]struct{}, len(activeTags))
	for _, tag := range activeTags {
		active[tag] = struct{}{}
	}

	// The preferred entries are copied before kb is locked, so two tables
	// blending into each other never hold both locks at once.
	preferred := preferenceScores.preferredEntries(active)

	kb.mu.Lock()
	defer kb.mu.Unlock()

	blended := 0
	if len(preferred) > 0 {
		for el := kb.errors.Front(); el != nil; el = el.Next() {
			blended += el.Value.influence(el.Key, preferred, active)
		}
	}

	kb.logger.Debug("blended preference scores",
		zap.Int("entries", blended),
		zap.Int("active_tags", len(active)))
	return blended
}

// entryKey addresses one entry across all three levels.
type entryKey struct {
	code    ErrorCode
	context ContextID
	action  ActionID
}

// preferredEntries copies the entries carrying at least one active tag.
func (kb *KnowledgeBase) preferredEntries(active map[TagID]struct{}) map[entryKey]ScoreEntry {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make(map[entryKey]ScoreEntry)
	for el := kb.errors.Front(); el != nil; el = el.Next() {
		code := el.Key
		el.Value.Range(func(contextID ContextID, actionID ActionID, entry ScoreEntry) bool {
			for _, tag := range entry.TagIDs() {
				if _, on := active[tag]; on {
					out[entryKey{code: code, context: contextID, action: actionID}] = entry
					break
				}
			}
			return true
		})
	}
	return out
}
