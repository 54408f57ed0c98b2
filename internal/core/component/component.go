// Package component implements the staged build of one rig component:
// guides, then deform joints with their inputs and outputs, then the animation
// rig, then polish. Every stage reconciles the live scene with the component's
// definition; the definition is written back onto the component meta node so
// the scene alone is enough to reload it.
package component

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/layers"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/scene"
)

// KindComponent marks component meta nodes.
const KindComponent = "component"

// Component meta attributes.
const (
	AttrComponentName = "componentName"
	AttrComponentSide = "componentSide"
	AttrComponentType = "componentType"
	AttrRootTransform = "rootTransform"
	AttrContainer     = "container"

	AttrHasGuide         = "hasGuide"
	AttrHasGuideControls = "hasGuideControls"
	AttrHasSkeleton      = "hasSkeleton"
	AttrHasRig           = "hasRig"
	AttrHasPolished      = "hasPolished"

	// AttrMarkingMenu holds the marking menu layout id on a layer meta node.
	AttrMarkingMenu = "markingMenu"
)

var stateFlags = []string{AttrHasGuide, AttrHasGuideControls, AttrHasSkeleton, AttrHasRig, AttrHasPolished}

// Component is one component of a rig: a definition plus, once created, a meta
// node in the scene.
type Component struct {
	host     Host
	graph    scene.Graph
	logger   log.Log
	behavior Behavior

	def  *definition.ComponentDefinition
	meta scene.NodeID

	fingerprints map[string]uint64

	// cache holds the layers while a stage runs. It is only consulted while one
	// of the building flags is set.
	cache            map[definition.LayerType]*layers.Layer
	buildingGuide    bool
	buildingSkeleton bool
	buildingRig      bool
}

// New returns a component for def that does not exist in the scene yet.
func New(host Host, behavior Behavior, def *definition.ComponentDefinition) *Component {
	if behavior == nil {
		behavior = BaseBehavior{}
	}
	c := &Component{
		host:     host,
		graph:    host.Graph(),
		behavior: behavior,
		def:      def,
	}
	c.logger = host.Logger().With(log.Component(def.Name, def.Side))
	return c
}

// Load wraps an existing component meta node. The persisted definition is
// read back and merged against template.
func Load(host Host, behavior Behavior, meta scene.NodeID, template *definition.ComponentDefinition) (*Component, error) {
	g := host.Graph()
	if !IsComponent(g, meta) {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetaNode, g.Name(meta))
	}
	raw := make(map[string]string)
	for _, name := range definition.SceneAttributeNames() {
		if s := scene.MustString(g, meta, name); s != "" {
			raw[name] = s
		}
	}
	def := definition.FromSceneData(raw, template, host.Logger())
	if def.Name == "" {
		def.Name = scene.MustString(g, meta, AttrComponentName)
	}
	if def.Side == "" || def.Side == definition.DefaultSide {
		if side := scene.MustString(g, meta, AttrComponentSide); side != "" {
			def.Side = side
		}
	}
	c := New(host, behavior, def)
	c.meta = meta
	c.fingerprints = definition.Fingerprints(raw)
	return c, nil
}

// IsComponent reports whether node is a component meta node.
func IsComponent(g scene.Graph, node scene.NodeID) bool {
	return node != "" && g.Exists(node) && hivenodes.Kind(g, node) == KindComponent
}

// Create builds the meta node and the root transform, and persists the definition.
func (c *Component) Create() error {
	if c.Exists() {
		return fmt.Errorf("%w: %s", ErrComponentExists, c.Token())
	}
	if c.def.Name == "" {
		return ErrInvalidName
	}
	if c.def.Side == "" {
		c.def.Side = definition.DefaultSide
	}
	g := c.graph
	meta, err := g.CreateNode(scene.TypeNetwork, c.nodeName(naming.RuleContainer, naming.TypeMeta, nil), "")
	if err != nil {
		return err
	}
	c.meta = meta
	if err := hivenodes.Stamp(g, meta, KindComponent, ""); err != nil {
		return err
	}
	specs := []scene.AttributeSpec{
		{Name: AttrComponentName, Type: scene.AttrString, Value: c.def.Name},
		{Name: AttrComponentSide, Type: scene.AttrString, Value: c.def.Side},
		{Name: AttrComponentType, Type: scene.AttrString, Value: c.def.Type},
	}
	for _, f := range stateFlags {
		specs = append(specs, scene.AttributeSpec{Name: f, Type: scene.AttrBool, Value: false})
	}
	for _, s := range specs {
		if err := g.AddAttribute(meta, s); err != nil {
			return err
		}
	}

	root, err := g.CreateNode(scene.TypeTransform, c.nodeName(naming.RuleContainer, naming.TypeHrc, nil), c.host.ComponentRoot())
	if err != nil {
		return err
	}
	if err := hivenodes.SetMessage(g, meta, AttrRootTransform, root); err != nil {
		return err
	}
	if err := g.SetLocked(root, true); err != nil {
		return err
	}
	if err := g.ConnectMeta(c.host.ComponentLayerMeta(), meta); err != nil {
		return err
	}
	c.logger.Debug("component created", log.String("type", c.def.Type))
	return c.SaveDefinition()
}

func (c *Component) Host() Host { return c.host }

func (c *Component) Graph() scene.Graph { return c.graph }

func (c *Component) Logger() log.Log { return c.logger }

func (c *Component) Behavior() Behavior { return c.behavior }

// Definition returns the live definition. Callers that change it persist the
// change with SaveDefinition.
func (c *Component) Definition() *definition.ComponentDefinition { return c.def }

func (c *Component) Meta() scene.NodeID { return c.meta }

func (c *Component) Name() string { return c.def.Name }

func (c *Component) Side() string { return c.def.Side }

func (c *Component) Type() string { return c.def.Type }

// Token returns "name:side".
func (c *Component) Token() string { return exprutils.ComponentToken(c.def.Name, c.def.Side) }

func (c *Component) String() string { return c.Token() }

// Exists reports whether the meta node is in the scene.
func (c *Component) Exists() bool { return IsComponent(c.graph, c.meta) }

func (c *Component) requireExists() error {
	if !c.Exists() {
		return fmt.Errorf("%w: %s", ErrMissingMetaNode, c.Token())
	}
	return nil
}

// RootTransform returns the transform every layer root lives under.
func (c *Component) RootTransform() scene.NodeID {
	if !c.Exists() {
		return ""
	}
	return hivenodes.MessageTarget(c.graph, c.meta, AttrRootTransform)
}

// Container returns the component container, "" before the first build.
func (c *Component) Container() scene.NodeID {
	if !c.Exists() {
		return ""
	}
	return hivenodes.MessageTarget(c.graph, c.meta, AttrContainer)
}

// State flags

func (c *Component) flag(name string) bool {
	return c.Exists() && scene.MustBool(c.graph, c.meta, name)
}

func (c *Component) setFlag(name string, value bool) error {
	if !c.Exists() {
		return nil
	}
	return scene.EnsureAttribute(c.graph, c.meta, scene.AttributeSpec{Name: name, Type: scene.AttrBool, Value: value})
}

func (c *Component) HasGuide() bool         { return c.flag(AttrHasGuide) }
func (c *Component) HasGuideControls() bool { return c.flag(AttrHasGuideControls) }
func (c *Component) HasSkeleton() bool      { return c.flag(AttrHasSkeleton) }
func (c *Component) HasRig() bool           { return c.flag(AttrHasRig) }
func (c *Component) HasPolished() bool      { return c.flag(AttrHasPolished) }

func (c *Component) IsBuildingGuide() bool    { return c.buildingGuide }
func (c *Component) IsBuildingSkeleton() bool { return c.buildingSkeleton }
func (c *Component) IsBuildingRig() bool      { return c.buildingRig }

func (c *Component) isBuilding() bool {
	return c.buildingGuide || c.buildingSkeleton || c.buildingRig
}

// Object cache

// generateObjectCache indexes the layers once for the running stage.
func (c *Component) generateObjectCache() {
	c.cache = make(map[definition.LayerType]*layers.Layer)
	for _, l := range c.layerList() {
		c.cache[l.Type()] = l
	}
}

func (c *Component) clearObjectCache() { c.cache = nil }

func (c *Component) layerList() []*layers.Layer {
	if !c.Exists() {
		return nil
	}
	var out []*layers.Layer
	for _, child := range c.graph.MetaChildren(c.meta) {
		if l, err := layers.Wrap(c.graph, child); err == nil {
			out = append(out, l)
		}
	}
	return out
}

// Layer returns the layer of typ.
func (c *Component) Layer(typ definition.LayerType) (*layers.Layer, error) {
	if c.isBuilding() && c.cache != nil {
		if l, ok := c.cache[typ]; ok && l.Exists() {
			return l, nil
		}
	}
	for _, l := range c.layerList() {
		if l.Type() == typ {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrLayerNotFound, c.Token(), typ)
}

func (c *Component) GuideLayer() (*layers.GuideLayer, error) {
	l, err := c.Layer(definition.GuideLayerType)
	if err != nil {
		return nil, err
	}
	return &layers.GuideLayer{Layer: l}, nil
}

func (c *Component) InputLayer() (*layers.InputLayer, error) {
	l, err := c.Layer(definition.InputLayerType)
	if err != nil {
		return nil, err
	}
	return &layers.InputLayer{Layer: l}, nil
}

func (c *Component) OutputLayer() (*layers.OutputLayer, error) {
	l, err := c.Layer(definition.OutputLayerType)
	if err != nil {
		return nil, err
	}
	return &layers.OutputLayer{Layer: l}, nil
}

func (c *Component) DeformLayer() (*layers.DeformLayer, error) {
	l, err := c.Layer(definition.DeformLayerType)
	if err != nil {
		return nil, err
	}
	return &layers.DeformLayer{Layer: l}, nil
}

func (c *Component) RigLayer() (*layers.RigLayer, error) {
	l, err := c.Layer(definition.RigLayerType)
	if err != nil {
		return nil, err
	}
	return &layers.RigLayer{Layer: l}, nil
}

// createLayer returns the layer of typ, creating it under the component root.
func (c *Component) createLayer(typ definition.LayerType) (*layers.Layer, error) {
	if l, err := c.Layer(typ); err == nil {
		return l, nil
	}
	l, err := layers.Create(c.graph, typ, c.layerRootName(typ), c.RootTransform())
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", typ, err)
	}
	if err := c.graph.ConnectMeta(c.meta, l.Meta()); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache[typ] = l
	}
	return l, nil
}

func (c *Component) deleteLayer(typ definition.LayerType) error {
	l, err := c.Layer(typ)
	if err != nil {
		return nil
	}
	if container := c.Container(); container != "" {
		c.unpublishLayer(container, l)
	}
	if c.cache != nil {
		delete(c.cache, typ)
	}
	return l.Delete()
}

// Container

// ensureContainer returns the component container, creating it when missing.
func (c *Component) ensureContainer() (scene.NodeID, error) {
	if id := c.Container(); id != "" {
		return id, nil
	}
	id, err := c.graph.CreateNode(scene.TypeContainer, c.nodeName(naming.RuleContainer, naming.TypeContainer, nil), "")
	if err != nil {
		return "", err
	}
	if err := hivenodes.SetMessage(c.graph, c.meta, AttrContainer, id); err != nil {
		return "", err
	}
	return id, nil
}

// enterContainer makes the component container current and returns the
// function restoring the previous one.
func (c *Component) enterContainer() (restore func(), err error) {
	container, err := c.ensureContainer()
	if err != nil {
		return nil, err
	}
	prev := c.graph.CurrentContainer()
	if err := c.graph.SetCurrentContainer(container); err != nil {
		return nil, err
	}
	return func() { _ = c.graph.SetCurrentContainer(prev) }, nil
}

// unpublishLayer drops every published attribute and node that lives in l.
func (c *Component) unpublishLayer(container scene.NodeID, l *layers.Layer) {
	owned := make(map[scene.NodeID]bool)
	for _, s := range l.SettingsNodes() {
		owned[s.Node()] = true
	}
	if root := l.RootTransform(); root != "" {
		for _, n := range scene.Descendants(c.graph, root) {
			owned[n] = true
		}
	}
	for _, p := range c.graph.PublishedAttributes(container) {
		if owned[p.Plug.Node] {
			_ = c.graph.UnpublishAttribute(container, p.Alias)
		}
	}
	for _, p := range c.graph.PublishedNodes(container) {
		if owned[p.Node] {
			_ = c.graph.UnpublishNode(container, p.Name)
		}
	}
}

// publishSettings exposes every attribute of the layer settings nodes.
func (c *Component) publishSettings(container scene.NodeID, l *layers.Layer) error {
	var errs []error
	for _, s := range l.SettingsNodes() {
		for _, a := range s.Serialize() {
			errs = append(errs, c.graph.PublishAttribute(container, s.Plug(a.Name), a.Name))
		}
	}
	return errors.Join(errs...)
}

// Naming

func (c *Component) tokens(extra map[string]string) map[string]string {
	out := map[string]string{
		"componentName": c.def.Name,
		"side":          c.def.Side,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (c *Component) nodeName(rule, typ string, extra map[string]string) string {
	tokens := c.tokens(extra)
	tokens["type"] = typ
	return c.host.Namer().Resolve(rule, tokens)
}

// ObjectName names a node of the component with hive id id.
func (c *Component) ObjectName(id, typ string) string {
	return c.host.Namer().Object(c.def.Name, c.def.Side, id, typ)
}

// SettingsName names a settings node of section.
func (c *Component) SettingsName(section string) string {
	return c.nodeName(naming.RuleSettings, naming.TypeSettings, map[string]string{"section": section})
}

// Hierarchy

// Parent returns the parent component, nil for top level components.
func (c *Component) Parent() *Component {
	p := c.parentMeta()
	if p == "" {
		return nil
	}
	name := scene.MustString(c.graph, p, AttrComponentName)
	side := scene.MustString(c.graph, p, AttrComponentSide)
	parent, err := c.host.FindComponent(name, side)
	if err != nil {
		return nil
	}
	return parent
}

func (c *Component) parentMeta() scene.NodeID {
	if !c.Exists() {
		return ""
	}
	for _, p := range c.graph.MetaParents(c.meta) {
		if IsComponent(c.graph, p) {
			return p
		}
	}
	return ""
}

// Children returns the direct child components in link order.
func (c *Component) Children() []*Component {
	if !c.Exists() {
		return nil
	}
	var out []*Component
	for _, child := range c.graph.MetaChildren(c.meta) {
		if !IsComponent(c.graph, child) {
			continue
		}
		name := scene.MustString(c.graph, child, AttrComponentName)
		side := scene.MustString(c.graph, child, AttrComponentSide)
		if comp, err := c.host.FindComponent(name, side); err == nil && !slices.Contains(out, comp) {
			out = append(out, comp)
		}
	}
	return out
}
