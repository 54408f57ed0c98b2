package rig

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// pass describes one batch build.
type pass struct {
	stage     component.Stage
	pre, post buildscript.Hook
	// built reports whether a component already went through the stage.
	built func(c *component.Component) bool
	build func(c *component.Component) error
	// requires is the stage a component must have reached first.
	requires *pass
}

// run builds the missing earlier stages of c, then p itself.
func (p *pass) run(c *component.Component) error {
	if p.requires != nil && !p.requires.built(c) {
		if err := p.requires.run(c); err != nil {
			return err
		}
	}
	return p.build(c)
}

var (
	guidePass = &pass{
		stage: component.StageGuide,
		pre:   buildscript.PreGuideBuild,
		post:  buildscript.PostGuideBuild,
		built: (*component.Component).HasGuide,
		build: (*component.Component).BuildGuide,
	}
	deformPass = &pass{
		stage:    component.StageDeform,
		pre:      buildscript.PreDeformBuild,
		post:     buildscript.PostDeformBuild,
		built:    (*component.Component).HasSkeleton,
		build:    func(c *component.Component) error { return c.BuildDeform("") },
		requires: guidePass,
	}
	rigPass = &pass{
		stage:    component.StageRig,
		pre:      buildscript.PreRigBuild,
		post:     buildscript.PostRigBuild,
		built:    (*component.Component).HasRig,
		build:    func(c *component.Component) error { return c.BuildRig("") },
		requires: deformPass,
	}
)

// BuildGuides builds the guides of comps, every component when none are given.
// Ancestors without guides are built first.
func (r *Rig) BuildGuides(comps ...*component.Component) error {
	return r.buildComponents(guidePass, comps)
}

// BuildDeform builds the skeletons of comps, every component when none are
// given. Ancestors without a skeleton are built first.
func (r *Rig) BuildDeform(comps ...*component.Component) error {
	return r.buildComponents(deformPass, comps)
}

// BuildRigs builds the animation rigs of comps, every component when none are
// given, then their space switches.
func (r *Rig) BuildRigs(comps ...*component.Component) error {
	return r.buildComponents(rigPass, comps)
}

// buildComponents runs p over comps in parent before child order. Earlier
// stages a component lacks are built on the way. The first failing component
// aborts the batch; components built before it stay built.
func (r *Rig) buildComponents(p *pass, comps []*component.Component) (err error) {
	if err := r.requireExists(); err != nil {
		return err
	}
	if len(comps) == 0 {
		comps = r.Components()
	}
	ordered, err := constructComponentOrder(withMissingAncestors(comps, p.built))
	if err != nil {
		return err
	}
	logger := r.logger.With(log.Stage(string(p.stage)))
	logger.Info("batch build started", log.Strings("components", tokens(ordered)))

	reconnect := r.disconnectComponents(withAncestors(ordered))
	defer func() { err = errors.Join(err, reconnect()) }()

	end, err := r.scripts.Scope(p.pre, p.post, ordered)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, end()) }()

	for _, c := range ordered {
		if err := p.run(c); err != nil {
			logger.Error("batch build aborted", log.String("component", c.Token()), log.Error(err))
			return err
		}
	}
	if p.stage == component.StageRig {
		var errs []error
		for _, c := range ordered {
			errs = append(errs, c.SetupSpaceSwitches())
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
	}
	if err := r.updateNaming(ordered); err != nil {
		return err
	}
	logger.Info("batch build finished", log.Int("components", len(ordered)))
	return nil
}

// Polish polishes comps, every component when none are given. Components
// without a rig get one first. A failing component, or a failing rig pass,
// does not stop the others: ok is true when at least one component was
// polished and err joins the failures.
func (r *Rig) Polish(comps ...*component.Component) (ok bool, err error) {
	if err := r.requireExists(); err != nil {
		return false, err
	}
	if len(comps) == 0 {
		comps = r.Components()
	}
	var missing []*component.Component
	for _, c := range comps {
		if !c.HasRig() {
			missing = append(missing, c)
		}
	}
	var errs []error
	if len(missing) > 0 {
		if err := r.BuildRigs(missing...); err != nil {
			r.logger.Warn("rig pass before polish failed", log.Error(err))
			errs = append(errs, err)
		}
	}
	ordered, err := constructComponentOrder(comps)
	if err != nil {
		return false, err
	}

	var polished []*component.Component
	for _, c := range ordered {
		if err := c.Polish(); err != nil {
			r.logger.Error("polish failed", log.String("component", c.Token()), log.Error(err))
			errs = append(errs, err)
			continue
		}
		polished = append(polished, c)
	}
	if len(polished) > 0 {
		errs = append(errs, r.scripts.Fire(buildscript.PostPolishBuild, polished...))
	}
	r.logger.Info("polish finished", log.Int("polished", len(polished)), log.Int("failed", len(ordered)-len(polished)))
	return len(polished) > 0, errors.Join(errs...)
}

// DeleteGuides removes the guide layers of comps, children first.
func (r *Rig) DeleteGuides(comps ...*component.Component) error {
	return r.deleteLayers(buildscript.PreDeleteGuideLayer, (*component.Component).DeleteGuide, comps)
}

// DeleteDeform removes the input, deform and output layers of comps, children first.
func (r *Rig) DeleteDeform(comps ...*component.Component) error {
	return r.deleteLayers(buildscript.PreDeleteDeformLayer, (*component.Component).DeleteDeform, comps)
}

// DeleteRigs removes the rig layers of comps, children first.
func (r *Rig) DeleteRigs(comps ...*component.Component) error {
	return r.deleteLayers(buildscript.PreDeleteRigLayer, (*component.Component).DeleteRig, comps)
}

func (r *Rig) deleteLayers(hook buildscript.Hook, del func(*component.Component) error, comps []*component.Component) error {
	if err := r.requireExists(); err != nil {
		return err
	}
	if len(comps) == 0 {
		comps = r.Components()
	}
	ordered, err := constructComponentOrder(comps)
	if err != nil {
		return err
	}
	for _, c := range slices.Backward(ordered) {
		if err := r.scripts.FireFor(hook, c); err != nil {
			return err
		}
		if err := del(c); err != nil {
			return fmt.Errorf("%s: %w", c.Token(), err)
		}
	}
	return nil
}

// withMissingAncestors adds the ancestors of comps that have not been built yet.
func withMissingAncestors(comps []*component.Component, built func(*component.Component) bool) []*component.Component {
	out := slices.Clone(comps)
	for _, c := range comps {
		for p := c.Parent(); p != nil && !slices.Contains(out, p); p = p.Parent() {
			if !built(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// withAncestors adds every ancestor of comps.
func withAncestors(comps []*component.Component) []*component.Component {
	out := slices.Clone(comps)
	for _, c := range comps {
		for p := c.Parent(); p != nil && !slices.Contains(out, p); p = p.Parent() {
			out = append(out, p)
		}
	}
	return out
}

// constructComponentOrder sorts comps parents first. Parents outside comps
// are ignored.
func constructComponentOrder(comps []*component.Component) ([]*component.Component, error) {
	ordered, cyclic := orderParentsFirst(comps, func(c *component.Component) (*component.Component, bool) {
		p := c.Parent()
		return p, p != nil
	})
	if len(cyclic) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrComponentCycle, strings.Join(tokens(cyclic), ", "))
	}
	return ordered, nil
}

// orderParentsFirst repeatedly peels off the items whose parent is not among
// the remaining ones. Whatever is left when nothing can be peeled is returned
// as cyclic.
func orderParentsFirst[T comparable](items []T, parent func(T) (T, bool)) (ordered, cyclic []T) {
	remaining := slices.Clone(items)
	ordered = make([]T, 0, len(items))
	for len(remaining) > 0 {
		var ready, blocked []T
		for _, it := range remaining {
			if p, ok := parent(it); ok && p != it && slices.Contains(remaining, p) {
				blocked = append(blocked, it)
				continue
			}
			ready = append(ready, it)
		}
		if len(ready) == 0 {
			return ordered, blocked
		}
		ordered = append(ordered, ready...)
		remaining = blocked
	}
	return ordered, nil
}

// disconnectComponents clears the input constraints of comps so a partial
// build reads no half built upstream transforms. The returned function binds
// the inputs again from the definitions, parents first.
func (r *Rig) disconnectComponents(comps []*component.Component) (reconnect func() error) {
	var cut []*component.Component
	for _, c := range comps {
		inputs, err := c.InputLayer()
		if err != nil {
			continue
		}
		for _, in := range inputs.Inputs() {
			if err := in.ClearConstraints(); err != nil {
				r.logger.Warn("failed to disconnect input", log.String("component", c.Token()), log.String("input", in.ID()), log.Error(err))
			}
		}
		cut = append(cut, c)
	}
	return func() error {
		ordered, err := constructComponentOrder(cut)
		if err != nil {
			return err
		}
		var errs []error
		for _, c := range ordered {
			if _, err := c.InputLayer(); err != nil {
				continue
			}
			errs = append(errs, c.DeserializeComponentConnections(definition.InputLayerType))
		}
		return errors.Join(errs...)
	}
}

// updateNaming renames the nodes of comps in one batch.
func (r *Rig) updateNaming(comps []*component.Component) error {
	mod := scene.NewModifier(r.graph)
	var relocks []func()
	var errs []error
	for _, c := range comps {
		relock, err := c.UpdateNaming(mod)
		relocks = append(relocks, relock)
		errs = append(errs, err)
	}
	if mod.Len() > 0 {
		errs = append(errs, mod.DoIt())
		r.logger.Debug("naming updated", log.Int("renames", mod.Len()))
	}
	for _, relock := range relocks {
		relock()
	}
	return errors.Join(errs...)
}

func tokens(comps []*component.Component) []string {
	out := make([]string, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.Token())
	}
	return out
}
