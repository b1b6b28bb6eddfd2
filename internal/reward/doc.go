// Package reward turns repair outcomes into score updates.
//
// A Calculator owns the active preferences and a handle to the
// knowledge.KnowledgeBase. For every applied action it sums the
// contributions of the action-level preferences, attributes each
// contribution to the preference's tag, and adds the total to the stored
// score. Batch-level preferences reward whole sequences (shortest/longest
// successful episode) and solution-level preferences score finished
// solutions with an external maintainability metric.
//
// # Preference Options
//
// Option values double as tag ids in the knowledge table:
//
//	0 shorter sequences       4 punish deletion
//	1 longer sequences        5 punish modification of the model
//	2 repair high in context  6 reward modification of the model
//	3 repair low in context   7 prefer maintainability
//
// # Arithmetic
//
// Weights are integers and fractional weights are computed multiply-first
// (weight*2/3), so a weight of 10 yields 6 rather than 0.
package reward
