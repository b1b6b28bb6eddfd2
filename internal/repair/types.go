package repair

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
)

// NoSubHierarchy marks an action that targets only a primary hierarchy
// level.
const NoSubHierarchy = -1

// NotApplicable is the value a MaintainabilityMetric returns when the metric
// cannot be computed for a solution.
const NotApplicable = -1.0

// Model is an opaque handle to the mutable model under repair.
type Model any

// Error is one structural error detected in a model.
type Error interface {
	Code() knowledge.ErrorCode
}

// Action is a candidate repair action definition.
type Action interface {
	Code() knowledge.ActionID
	Message() string
	IsDeletion() bool
	Hierarchy() int
	SubHierarchy() int
}

// ErrorExtractor lists the errors currently present in a model.
type ErrorExtractor interface {
	ExtractErrors(ctx context.Context, model Model) ([]Error, error)
}

// ActionExtractor lists the candidate actions for an error.
type ActionExtractor interface {
	ExtractActions(ctx context.Context, model Model, err Error) ([]Action, error)
}

// Applier mutates model by applying action to err.
type Applier interface {
	Apply(ctx context.Context, model Model, err Error, action Action) error
}

// ModelCopier creates an independent working copy of a model so each
// episode starts from the original.
type ModelCopier interface {
	Copy(ctx context.Context, model Model) (Model, error)
}

// MaintainabilityMetric scores a finished solution on a 0-100 scale, or
// returns NotApplicable.
type MaintainabilityMetric interface {
	Calculate(ctx context.Context, solution *Solution) (float64, error)
}

// ContextID concatenates the decimal digits of hierarchy and subHierarchy,
// so hierarchy 1 with sub-hierarchy 2 yields 12. Without a sub-hierarchy the
// hierarchy level is returned unchanged.
func ContextID(hierarchy, subHierarchy int) knowledge.ContextID {
	if subHierarchy <= NoSubHierarchy {
		return knowledge.ContextID(hierarchy)
	}
	shift := 10
	for v := subHierarchy; v >= 10; v /= 10 {
		shift *= 10
	}
	return knowledge.ContextID(hierarchy*shift + subHierarchy)
}

// ContextIDOf returns the context id an action applies in.
func ContextIDOf(action Action) knowledge.ContextID {
	return ContextID(action.Hierarchy(), action.SubHierarchy())
}

// IsDeletion reports whether an action deletes model elements, either by its
// flag or, for extractors that do not set the flag, by its message.
func IsDeletion(action Action) bool {
	return action.IsDeletion() || strings.Contains(strings.ToLower(action.Message()), "delete")
}

// Definition is a plain Action value.
type Definition struct {
	ID       knowledge.ActionID
	Msg      string
	Deletion bool
	Level    int
	SubLevel int
}

var _ Action = Definition{}

func (d Definition) Code() knowledge.ActionID { return d.ID }
func (d Definition) Message() string          { return d.Msg }
func (d Definition) IsDeletion() bool         { return d.Deletion }
func (d Definition) Hierarchy() int           { return d.Level }
func (d Definition) SubHierarchy() int        { return d.SubLevel }

// Code is a plain Error value.
type Code knowledge.ErrorCode

var _ Error = Code(0)

func (c Code) Code() knowledge.ErrorCode { return knowledge.ErrorCode(c) }
