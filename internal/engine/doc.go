// Package engine assembles a knowledge table, a reward calculator and a
// trainer from a config.Config, and persists what a training run learns.
package engine
