package hivenodes

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/mathx"
)

// SetGuidesWorldMatrix moves every guide to the matching world matrix while the
// other guides stay where they are. Child guides and any other child transforms
// are detached for the edit and reattached afterwards. With skipLocked, guides
// with a locked transform channel are left alone.
func SetGuidesWorldMatrix(g scene.Graph, guides []*Guide, matrices []mathx.Matrix, skipLocked bool) error {
	if len(guides) != len(matrices) {
		return fmt.Errorf("%w: %d guides, %d matrices", ErrLengthMismatch, len(guides), len(matrices))
	}

	type detached struct {
		node, parent scene.NodeID
	}
	var (
		moved []detached
		errs  []error
	)
	for _, gd := range guides {
		defer Unlock(g, gd.node, gd.top())()
		for _, c := range g.Children(gd.node) {
			if !keepsParentDuringEdit(g, c) {
				continue
			}
			defer Unlock(g, c)()
			if err := g.SetParent(c, "", true); err != nil {
				errs = append(errs, err)
				continue
			}
			moved = append(moved, detached{node: c, parent: gd.node})
		}
	}

	for i, gd := range guides {
		if skipLocked && gd.hasLockedTransform() {
			continue
		}
		if srt := gd.SRT(); srt != "" {
			world := gd.WorldMatrix()
			if err := g.SetLocalMatrix(srt, mathx.Identity()); err != nil {
				errs = append(errs, err)
			}
			// keep the pivot in place until its own matrix is written
			errs = append(errs, gd.SetWorldMatrix(world))
		}
		errs = append(errs, gd.SetWorldMatrix(matrices[i]))
	}

	for _, d := range slices.Backward(moved) {
		if err := g.SetParent(d.node, d.parent, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// keepsParentDuringEdit reports whether a child of a guide pivot has to be
// detached so the edit does not drag it along. Shape transforms, snap locators
// and constraints follow the pivot.
func keepsParentDuringEdit(g scene.Graph, id scene.NodeID) bool {
	if typ, err := g.Type(id); err != nil || typ == scene.TypeConstraint {
		return false
	}
	switch Kind(g, id) {
	case KindGuideShape, KindSnapLocator:
		return false
	}
	return true
}

// AlignGuidesToPlane projects the guide chain onto plane and aims every guide at
// the next one with the plane normal as up direction. With skipEnd the last guide
// keeps its rotation, otherwise it takes the rotation of the previous guide.
// With updateVectors the guides' auto-align vectors are overwritten.
func AlignGuidesToPlane(g scene.Graph, guides []*Guide, plane mathx.Plane, aimVector, upVector mathx.Vector3, updateVectors, skipEnd bool) error {
	if len(guides) == 0 {
		return nil
	}
	positions := make([]mathx.Vector3, len(guides))
	for i, gd := range guides {
		positions[i] = plane.Project(gd.Translation())
	}

	matrices := make([]mathx.Matrix, len(guides))
	var lastRotation mathx.Vector3
	for i, gd := range guides {
		_, r, s := gd.WorldMatrix().Decompose()
		switch {
		case i < len(guides)-1:
			dir := positions[i+1].Sub(positions[i])
			if !dir.IsZero() {
				r = mathx.LookAt(dir, plane.Normal, aimVector, upVector).EulerXYZ()
			}
		case !skipEnd && i > 0:
			r = lastRotation
		}
		lastRotation = r
		matrices[i] = mathx.Compose(positions[i], r, s)
	}

	if updateVectors {
		var errs []error
		for _, gd := range guides {
			errs = append(errs,
				g.Set(gd.node, AttrAimVector, aimVector),
				g.Set(gd.node, AttrUpVector, upVector),
			)
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
	}
	return SetGuidesWorldMatrix(g, guides, matrices, false)
}
