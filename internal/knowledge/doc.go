// Package knowledge provides the persistent scoring table learned by the
// repair loop.
//
// The table is a three-level nested mapping:
//
//	ErrorCode -> ContextID -> ActionID -> ScoreEntry
//
// Each ScoreEntry carries a numeric score and a tag dictionary recording how
// much every preference contributed to that score.
//
// # Enumeration Order
//
// Every level is an insertion-ordered map. Argmax sweeps entries in
// insertion order and only replaces its candidate on a strictly greater
// score, so ties resolve to the entry inserted first. Loading a persisted
// document inserts keys in document order, which makes argmax results stable
// across save/load cycles.
//
// # Absent Keys
//
// Reads of unknown (error, context, action) triples return a default entry
// and never fail. Writes create whatever levels are missing. A context never
// exists without at least one action.
//
// # Persistence
//
// KnowledgeBase.Save and KnowledgeBase.Load read and write XML or YAML
// documents. Malformed error nodes are logged, counted and skipped; the rest
// of the document still loads.
//
// # Concurrency
//
// KnowledgeBase methods are guarded by a single RWMutex. Use Update for
// read-modify-write sequences; a Get followed by Set is not atomic.
// ActionTable and ContextTable are not safe for concurrent use on their own.
package knowledge
