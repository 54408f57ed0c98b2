package component

import (
	"errors"
	"fmt"
)

// Stage names a build stage. The values are used as metric and log labels.
type Stage string

const (
	StageGuide  Stage = "guide"
	StageDeform Stage = "deform"
	StageRig    Stage = "rig"
	StagePolish Stage = "polish"
)

func (s Stage) sentinel() error {
	switch s {
	case StageGuide:
		return ErrGuideBuild
	case StageDeform:
		return ErrDeformBuild
	case StageRig:
		return ErrRigBuild
	case StagePolish:
		return ErrPolishBuild
	default:
		return nil
	}
}

// BuildError reports a failed stage of one component. The scene is left as the
// stage left it.
type BuildError struct {
	Stage     Stage
	Component string
	Err       error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: build %s: %v", e.Component, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Is matches the stage sentinel, so errors.Is(err, ErrRigBuild) holds for any
// failed rig stage.
func (e *BuildError) Is(target error) bool {
	s := e.Stage.sentinel()
	return s != nil && target == s
}

// StageOf returns the stage of the first BuildError in err's chain.
func StageOf(err error) (Stage, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Stage, true
	}
	return "", false
}
