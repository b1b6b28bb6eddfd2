// Package trainer runs batches of repair episodes against a model and feeds
// their outcomes into a reward.Calculator.
//
// Each episode works on a copy of the model. At every step the first
// remaining error is repaired with an action chosen ε-greedily from the
// knowledge base; actions seen for the first time are seeded with the
// calculator's initial score. An episode that leaves no errors is a
// solution. After the batch, sequence-length bonuses go to the solutions,
// solution-level preferences are applied and the preference table is blended into the
// main table.
package trainer
