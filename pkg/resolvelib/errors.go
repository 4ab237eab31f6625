package resolvelib

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrResolutionImpossible matches every [ResolutionImpossible] error.
	ErrResolutionImpossible = errors.New("resolution impossible")

	// ErrResolutionTooDeep is returned when the round limit is exceeded.
	ErrResolutionTooDeep = errors.New("resolution too deep")
)

// ResolutionImpossible reports requirements no candidate can satisfy
// together.
type ResolutionImpossible struct {
	Causes []RequirementInformation
}

func (e *ResolutionImpossible) Error() string {
	lines := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		lines = append(lines, describe(c))
	}
	return fmt.Sprintf("%v: %s", ErrResolutionImpossible, strings.Join(lines, "; "))
}

// Is makes errors.Is(err, ErrResolutionImpossible) hold.
func (e *ResolutionImpossible) Is(target error) bool {
	return target == ErrResolutionImpossible
}

func describe(info RequirementInformation) string {
	if info.Parent == nil {
		return info.Requirement.Line()
	}
	return fmt.Sprintf("%s (from %s)", info.Requirement.Line(), info.Parent.Line())
}

// requirementsConflicted is raised internally when a criterion has no
// candidates left.
type requirementsConflicted struct {
	criterion *criterion
}

func (e *requirementsConflicted) Error() string {
	return "requirements conflicted"
}
