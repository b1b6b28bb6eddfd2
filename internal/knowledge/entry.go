package knowledge

import (
	"maps"
	"slices"
)

// DefaultScore is the score of an entry that has never been written.
const DefaultScore = 0.0

// ErrorCode identifies a class of structural error.
type ErrorCode int

// ContextID identifies the hierarchy depth at which an action applies.
type ContextID int

// ActionID identifies a repair action definition.
type ActionID int

// TagID identifies the preference a score contribution is attributed to.
type TagID int

// ScoreEntry is the value stored for one (error, context, action) triple.
//
// ScoreEntry is a value type. The With* methods return modified copies and
// never mutate the receiver's tag dictionary, so entries handed out by the
// tables can be kept without aliasing stored state.
type ScoreEntry struct {
	score float64
	tags  map[TagID]float64
}

// NewScoreEntry creates an entry with the given score and no tags.
func NewScoreEntry(score float64) ScoreEntry {
	return ScoreEntry{score: score}
}

// Score returns the entry's score.
func (e ScoreEntry) Score() float64 {
	return e.score
}

// Tag returns the accumulated value for tag and whether the tag is present.
func (e ScoreEntry) Tag(tag TagID) (float64, bool) {
	v, ok := e.tags[tag]
	return v, ok
}

// HasTag reports whether the tag dictionary contains tag.
func (e ScoreEntry) HasTag(tag TagID) bool {
	_, ok := e.tags[tag]
	return ok
}

// Tags returns a copy of the tag dictionary.
func (e ScoreEntry) Tags() map[TagID]float64 {
	return maps.Clone(e.tags)
}

// TagIDs returns the tag ids in ascending order.
func (e ScoreEntry) TagIDs() []TagID {
	return slices.Sorted(maps.Keys(e.tags))
}

// WithScore returns a copy of e with the score replaced.
func (e ScoreEntry) WithScore(score float64) ScoreEntry {
	e.score = score
	return e
}

// WithScoreDelta returns a copy of e with delta added to the score.
func (e ScoreEntry) WithScoreDelta(delta float64) ScoreEntry {
	e.score += delta
	return e
}

// WithTagIncrement returns a copy of e whose tag value for tag is increased
// by delta. A missing tag is seeded with delta.
func (e ScoreEntry) WithTagIncrement(tag TagID, delta float64) ScoreEntry {
	tags := make(map[TagID]float64, len(e.tags)+1)
	maps.Copy(tags, e.tags)
	tags[tag] += delta
	e.tags = tags
	return e
}

// WithTag returns a copy of e whose tag value for tag is set to value.
func (e ScoreEntry) WithTag(tag TagID, value float64) ScoreEntry {
	tags := make(map[TagID]float64, len(e.tags)+1)
	maps.Copy(tags, e.tags)
	tags[tag] = value
	e.tags = tags
	return e
}

// Equal reports whether both entries hold the same score and tags.
func (e ScoreEntry) Equal(other ScoreEntry) bool {
	return e.score == other.score && maps.Equal(e.tags, other.tags)
}
