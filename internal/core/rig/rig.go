// Package rig aggregates components into one rig and runs the batch build
// passes over them in parent before child order. The scene meta graph is the
// source of truth: the component arena a Rig keeps is rebuilt from it whenever
// it is looked at.
package rig

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/events/bus"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/layers"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/observability/metrics"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/encoding"
)

// Kinds stamped on rig level meta nodes.
const (
	KindRig            = "rig"
	KindComponentLayer = "componentLayer"
)

// Rig meta attributes.
const (
	AttrRigName       = "rigName"
	AttrNamespace     = "namespace"
	AttrConfiguration = "configuration"
	AttrRootTransform = "rootTransform"

	componentsLayerName = "components"
	geometryLayerName   = "geometry"
)

// Catalog is what a rig needs from the registry.
type Catalog interface {
	Template(typ string) (*definition.ComponentDefinition, error)
	NewBehavior(typ string) component.Behavior
	BuildScript(id string) (buildscript.Script, error)
	Naming() *naming.Manager
}

// Rig is one rig in the scene.
type Rig struct {
	graph   scene.Graph
	catalog Catalog
	logger  log.Log
	metrics metrics.Recorder
	bus     bus.EventBus
	scripts *buildscript.Dispatcher

	meta      scene.NodeID
	name      string
	namespace string
	config    Configuration

	// arena is keyed by component token and only ever a view of the meta graph.
	arena map[string]*component.Component
	order []string
}

var _ component.Host = (*Rig)(nil)

// QualifiedName joins namespace and name the way rig lookups accept them.
func QualifiedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + ":" + name
}

func (r *Rig) Name() string      { return r.name }
func (r *Rig) Namespace() string { return r.namespace }

// FullName returns "namespace:name", or the name outside a namespace.
func (r *Rig) FullName() string { return QualifiedName(r.namespace, r.name) }

func (r *Rig) String() string { return r.FullName() }

func (r *Rig) Meta() scene.NodeID { return r.meta }

// Exists reports whether the rig meta node is in the scene.
func (r *Rig) Exists() bool {
	return r.meta != "" && r.graph.Exists(r.meta) && hivenodes.Kind(r.graph, r.meta) == KindRig
}

func (r *Rig) requireExists() error {
	if !r.Exists() {
		return fmt.Errorf("%w: %s", ErrMissingRigNode, r.FullName())
	}
	return nil
}

// Host

func (r *Rig) Graph() scene.Graph         { return r.graph }
func (r *Rig) Logger() log.Log            { return r.logger }
func (r *Rig) Metrics() metrics.Recorder  { return r.metrics }
func (r *Rig) Options() component.Options { return r.config.Options() }

func (r *Rig) Namer() naming.Namer {
	return r.catalog.Naming().Namer(r.config.NamingPreset)
}

// ComponentLayerMeta is the meta parent of top level components.
func (r *Rig) ComponentLayerMeta() scene.NodeID { return r.metaChild(KindComponentLayer) }

// ComponentRoot is the transform component roots are created under.
func (r *Rig) ComponentRoot() scene.NodeID {
	return hivenodes.MessageTarget(r.graph, r.ComponentLayerMeta(), AttrRootTransform)
}

func (r *Rig) RootTransform() scene.NodeID {
	if !r.Exists() {
		return ""
	}
	return hivenodes.MessageTarget(r.graph, r.meta, AttrRootTransform)
}

func (r *Rig) Configuration() Configuration { return r.config }

// Scripts returns the dispatcher running the rig's build scripts.
func (r *Rig) Scripts() *buildscript.Dispatcher { return r.scripts }

func (r *Rig) metaChild(kind string) scene.NodeID {
	if !r.Exists() {
		return ""
	}
	for _, child := range r.graph.MetaChildren(r.meta) {
		if hivenodes.Kind(r.graph, child) == kind {
			return child
		}
	}
	return ""
}

// GeometryLayer returns the layer holding the rig geometry and its skin clusters.
func (r *Rig) GeometryLayer() (*layers.GeometryLayer, error) {
	meta := r.metaChild(string(definition.GeometryLayerType))
	if meta == "" {
		return nil, fmt.Errorf("%w: %s.%s", component.ErrLayerNotFound, r.FullName(), definition.GeometryLayerType)
	}
	l, err := layers.Wrap(r.graph, meta)
	if err != nil {
		return nil, err
	}
	return &layers.GeometryLayer{Layer: l}, nil
}

// BindGeometry creates a skin cluster named name over the deform joints of
// comps, every component when none are given.
func (r *Rig) BindGeometry(name string, comps ...*component.Component) (scene.NodeID, error) {
	geo, err := r.GeometryLayer()
	if err != nil {
		return "", err
	}
	if len(comps) == 0 {
		comps = r.Components()
	}
	var joints []*hivenodes.Joint
	for _, c := range comps {
		deform, err := c.DeformLayer()
		if err != nil {
			continue
		}
		joints = append(joints, deform.Joints()...)
	}
	skin, err := geo.CreateSkinCluster(name, joints)
	if err != nil {
		return "", err
	}
	r.logger.Debug("geometry bound", log.String("skinCluster", name), log.Int("joints", len(joints)))
	return skin, nil
}

// SetConfiguration persists cfg on the rig meta node and applies it: build
// scripts are attached again and a naming preset change renames every component.
func (r *Rig) SetConfiguration(cfg Configuration) error {
	if err := r.requireExists(); err != nil {
		return err
	}
	prev := r.config
	r.config = cfg
	if err := r.saveConfiguration(); err != nil {
		return err
	}
	var errs []error
	if err := r.scripts.Detach(); err != nil {
		errs = append(errs, err)
	}
	r.scripts = buildscript.NewDispatcher(r.bus, r.logger, r.FullName())
	errs = append(errs, r.attachScripts())
	if prev.NamingPreset != cfg.NamingPreset {
		errs = append(errs, r.updateNaming(r.Components()))
	}
	return errors.Join(errs...)
}

func (r *Rig) saveConfiguration() error {
	data, err := encoding.EncodeString(r.config)
	if err != nil {
		return err
	}
	return scene.EnsureAttribute(r.graph, r.meta, scene.AttributeSpec{Name: AttrConfiguration, Type: scene.AttrString, Value: data})
}

// attachScripts attaches the configured build scripts. Unknown ids are
// reported and skipped so a rig stays loadable without its scripts.
func (r *Rig) attachScripts() error {
	var errs []error
	for _, sc := range r.config.BuildScripts {
		s, err := r.catalog.BuildScript(sc.ID)
		if err != nil {
			r.logger.Warn("build script unavailable", log.String("script", sc.ID), log.Error(err))
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownScriptID, sc.ID))
			continue
		}
		if err := r.scripts.Attach(s, sc.Properties); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AddBuildScript attaches the script with id and persists it in the configuration.
func (r *Rig) AddBuildScript(id string, props buildscript.Properties) error {
	if _, err := r.catalog.BuildScript(id); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownScriptID, id)
	}
	return r.SetConfiguration(r.config.WithScript(id, props))
}

// Delete removes every component, children first, then the rig nodes.
func (r *Rig) Delete() error {
	if err := r.requireExists(); err != nil {
		return err
	}
	comps := r.Components()
	if err := r.scripts.Fire(buildscript.PreDeleteRig, comps...); err != nil {
		return err
	}
	ordered, err := constructComponentOrder(comps)
	if err != nil {
		return err
	}
	for _, c := range slices.Backward(ordered) {
		if err := r.deleteComponent(c); err != nil {
			return err
		}
	}

	g := r.graph
	var errs []error
	if geo, err := r.GeometryLayer(); err == nil {
		errs = append(errs, geo.Delete())
	}
	if root := r.RootTransform(); root != "" {
		hivenodes.UnlockTree(g, root)
		errs = append(errs, g.DeleteNodes(root))
	}
	if layer := r.ComponentLayerMeta(); layer != "" {
		errs = append(errs, g.DeleteNodes(layer))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if err := g.DeleteNodes(r.meta); err != nil {
		return err
	}
	r.meta = ""
	r.arena, r.order = nil, nil
	r.logger.Info("rig deleted")
	return r.scripts.Detach()
}
