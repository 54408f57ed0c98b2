package rig

import (
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// refresh rebuilds the arena from the meta graph. Component instances whose
// meta node is still reachable are kept, so renamed components keep their
// identity.
func (r *Rig) refresh() {
	byMeta := make(map[scene.NodeID]*component.Component, len(r.arena))
	for _, c := range r.arena {
		if c.Exists() {
			byMeta[c.Meta()] = c
		}
	}
	arena := make(map[string]*component.Component, len(byMeta))
	var order []string

	g := r.graph
	layer := r.ComponentLayerMeta()
	if layer == "" {
		r.arena, r.order = arena, nil
		return
	}
	seen := map[scene.NodeID]bool{layer: true}
	queue := []scene.NodeID{layer}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range g.MetaChildren(node) {
			if seen[child] || !component.IsComponent(g, child) {
				continue
			}
			seen[child] = true
			queue = append(queue, child)

			c, ok := byMeta[child]
			if !ok {
				loaded, err := r.loadComponent(child)
				if err != nil {
					r.logger.Warn("failed to load component", log.String("meta", g.Name(child)), log.Error(err))
					continue
				}
				c = loaded
			}
			if _, dup := arena[c.Token()]; dup {
				r.logger.Warn("duplicate component token", log.String("component", c.Token()))
				continue
			}
			arena[c.Token()] = c
			order = append(order, c.Token())
		}
	}
	r.arena, r.order = arena, order
}

func (r *Rig) loadComponent(meta scene.NodeID) (*component.Component, error) {
	typ := scene.MustString(r.graph, meta, component.AttrComponentType)
	template, err := r.catalog.Template(typ)
	if err != nil {
		r.logger.Debug("component type has no template", log.String("type", typ), log.Error(err))
		template = nil
	}
	return component.Load(r, r.catalog.NewBehavior(typ), meta, template)
}

// ClearCache drops the component arena. The next lookup rebuilds it.
func (r *Rig) ClearCache() { r.arena, r.order = nil, nil }

// Components returns every component, parents before children.
func (r *Rig) Components() []*component.Component {
	r.refresh()
	out := make([]*component.Component, 0, len(r.order))
	for _, token := range r.order {
		out = append(out, r.arena[token])
	}
	return out
}

// Component returns the component name:side.
func (r *Rig) Component(name, side string) (*component.Component, error) {
	return r.FindComponent(name, side)
}

// FindComponent implements component.Host.
func (r *Rig) FindComponent(name, side string) (*component.Component, error) {
	token := exprutils.ComponentToken(name, side)
	if c, ok := r.arena[token]; ok && c.Exists() && c.Token() == token {
		return c, nil
	}
	r.refresh()
	if c, ok := r.arena[token]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", component.ErrComponentNotFound, token)
}

func (r *Rig) HasComponent(name, side string) bool {
	_, err := r.FindComponent(name, side)
	return err == nil
}

// CreateComponent instantiates the registered type typ as name:side. Empty
// name and side fall back to the template's.
func (r *Rig) CreateComponent(typ, name, side string) (*component.Component, error) {
	template, err := r.catalog.Template(typ)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = template.Name
	}
	if side == "" {
		side = template.Side
	}
	def := template.Duplicate(name, side)
	def.Type = typ
	def.SetOriginal(template)
	return r.CreateComponentFromDefinition(def)
}

// CreateComponentFromDefinition creates a component from def. A parent token in
// def is linked when that component exists.
func (r *Rig) CreateComponentFromDefinition(def *definition.ComponentDefinition) (*component.Component, error) {
	return r.addComponent(def, nil)
}

func (r *Rig) addComponent(def *definition.ComponentDefinition, remap map[string]string) (*component.Component, error) {
	if err := r.requireExists(); err != nil {
		return nil, err
	}
	if def.Side == "" {
		def.Side = definition.DefaultSide
	}
	if r.HasComponent(def.Name, def.Side) {
		return nil, fmt.Errorf("%w: %s", component.ErrComponentExists, def.Token())
	}
	template, _ := r.catalog.Template(def.Type)
	if definition.NeedsMigration(def.Version) {
		def = definition.MigrateToLatestVersion(def, template)
	}

	c := component.New(r, r.catalog.NewBehavior(def.Type), def)
	if len(remap) > 0 {
		if err := c.RemapConnections(remap); err != nil {
			return nil, err
		}
	}
	parentToken := def.Parent
	def.Parent = ""
	if err := c.Create(); err != nil {
		return nil, err
	}
	// seed the arena so refresh keeps this instance
	if r.arena == nil {
		r.arena = make(map[string]*component.Component)
	}
	r.arena[c.Token()] = c
	r.refresh()

	if parentToken != "" {
		parent, err := r.componentByToken(parentToken)
		if err != nil {
			r.logger.Warn("parent component missing", log.String("component", c.Token()), log.String("parent", parentToken))
			def.Parent = parentToken
			return c, c.SaveDefinition()
		}
		if err := c.SetParent(parent, ""); err != nil {
			return c, err
		}
	}
	r.logger.Debug("component added", log.String("component", c.Token()), log.String("type", def.Type))
	return c, nil
}

func (r *Rig) componentByToken(token string) (*component.Component, error) {
	name, side, err := exprutils.SplitComponentToken(token)
	if err != nil {
		return nil, err
	}
	return r.FindComponent(name, side)
}

// DeleteComponent removes name:side from the scene. Its children move under
// the component layer.
func (r *Rig) DeleteComponent(name, side string) error {
	c, err := r.FindComponent(name, side)
	if err != nil {
		return err
	}
	return r.deleteComponent(c)
}

func (r *Rig) deleteComponent(c *component.Component) error {
	if err := r.scripts.FireFor(buildscript.PreDeleteComponent, c); err != nil {
		return err
	}
	token := c.Token()
	if err := c.Delete(); err != nil {
		return fmt.Errorf("delete %s: %w", token, err)
	}
	delete(r.arena, token)
	r.order = slices.DeleteFunc(r.order, func(t string) bool { return t == token })
	r.logger.Debug("component deleted", log.String("component", token))
	return nil
}

// DuplicateComponent copies c as name:side under the same parent. References
// to c inside the copy point at the copy. The copy gets guides when c has them.
func (r *Rig) DuplicateComponent(c *component.Component, name, side string) (*component.Component, error) {
	if side == "" {
		side = c.Side()
	}
	src := c.SerializeFromScene(definition.GuideLayerType)
	def := src.Duplicate(name, side)
	def.SetOriginal(src.Original())
	dup, err := r.addComponent(def, nil)
	if err != nil {
		return nil, err
	}
	if c.HasGuide() {
		if err := r.BuildGuides(dup); err != nil {
			return dup, err
		}
	}
	return dup, nil
}

// MirrorComponent creates the mirrored counterpart of c on the opposite side.
// Parent and driver references to components that have a mirrored counterpart
// follow it, so a left arm under a left clavicle mirrors under the right one.
func (r *Rig) MirrorComponent(c *component.Component) (*component.Component, error) {
	side := definition.MirrorSide(c.Side())
	if side == c.Side() {
		return nil, fmt.Errorf("%w: %s", ErrMirrorSide, c.Token())
	}
	src := c.SerializeFromScene(definition.GuideLayerType)
	def := src.Mirror(side)
	def.SetOriginal(src.Original())

	remap := make(map[string]string)
	for _, other := range r.Components() {
		mirrored := definition.MirrorSide(other.Side())
		if mirrored == other.Side() {
			continue
		}
		if r.HasComponent(other.Name(), mirrored) {
			remap[other.Token()] = exprutils.ComponentToken(other.Name(), mirrored)
		}
	}
	mirror, err := r.addComponent(def, remap)
	if err != nil {
		return nil, err
	}
	if c.HasGuide() {
		if err := r.BuildGuides(mirror); err != nil {
			return mirror, err
		}
	}
	return mirror, nil
}
