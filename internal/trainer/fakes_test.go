package trainer

import (
	"context"
	"fmt"
	"slices"

	"github.com/fyrsmithlabs/qrepair/internal/repair"
)

// fakeModel is a bag of error codes.
type fakeModel struct {
	errors []int
}

const (
	actionFix    = 1
	actionDelete = 2
	actionSwap   = 3
)

var (
	fixAction    = repair.Definition{ID: actionFix, Msg: "set missing value", Level: 1, SubLevel: repair.NoSubHierarchy}
	deleteAction = repair.Definition{ID: actionDelete, Msg: "delete element", Deletion: true, Level: 1, SubLevel: repair.NoSubHierarchy}
	swapAction   = repair.Definition{ID: actionSwap, Msg: "change type", Level: 3, SubLevel: repair.NoSubHierarchy}
)

// fakeRepairs implements every collaborator over fakeModel. actions maps an
// error code to the actions offered for it; swap replaces the error with
// swapTo. The first stuckCopies episodes are only offered swapAction.
type fakeRepairs struct {
	actions     map[int][]repair.Action
	swapTo      int
	stuckCopies int
	copies      int
}

func (f *fakeRepairs) Copy(_ context.Context, model repair.Model) (repair.Model, error) {
	f.copies++
	return &fakeModel{errors: slices.Clone(model.(*fakeModel).errors)}, nil
}

func (f *fakeRepairs) ExtractErrors(_ context.Context, model repair.Model) ([]repair.Error, error) {
	m := model.(*fakeModel)
	out := make([]repair.Error, 0, len(m.errors))
	for _, code := range m.errors {
		out = append(out, repair.Code(code))
	}
	return out, nil
}

func (f *fakeRepairs) ExtractActions(_ context.Context, _ repair.Model, err repair.Error) ([]repair.Action, error) {
	if f.copies <= f.stuckCopies {
		return []repair.Action{swapAction}, nil
	}
	return f.actions[int(err.Code())], nil
}

func (f *fakeRepairs) Apply(_ context.Context, model repair.Model, err repair.Error, action repair.Action) error {
	m := model.(*fakeModel)
	i := slices.Index(m.errors, int(err.Code()))
	if i < 0 {
		return fmt.Errorf("error %d not present", err.Code())
	}
	switch action.Code() {
	case actionFix, actionDelete:
		m.errors = slices.Delete(m.errors, i, i+1)
	case actionSwap:
		m.errors[i] = f.swapTo
	default:
		return fmt.Errorf("unknown action %d", action.Code())
	}
	return nil
}

func (f *fakeRepairs) collaborators() Collaborators {
	return Collaborators{Copier: f, Errors: f, Actions: f, Applier: f}
}
