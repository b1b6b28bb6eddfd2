// Package repair defines the collaborators the learning engine talks to and
// the per-episode records it produces.
//
// Loading models, detecting errors, enumerating candidate actions and
// mutating the model all live outside this module. They are reached only
// through the interfaces declared here, which keeps the knowledge and reward
// packages independent of any model representation.
package repair
