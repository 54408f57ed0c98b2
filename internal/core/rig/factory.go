package rig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/hive/internal/core/buildscript"
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

// Factory creates rigs in a scene and finds the ones already there.
type Factory struct {
	graph   scene.Graph
	catalog Catalog
	bus     bus.EventBus
	logger  log.Log
	metrics metrics.Recorder

	// rigs keeps one Rig per meta node so build scripts are attached once.
	rigs map[scene.NodeID]*Rig

	// Defaults is the configuration new rigs start from.
	Defaults Configuration
}

func NewFactory(g scene.Graph, catalog Catalog, b bus.EventBus, logger log.Log, rec metrics.Recorder) *Factory {
	if rec == nil {
		rec = metrics.Nop()
	}
	if b == nil {
		b = bus.New()
	}
	return &Factory{
		graph:    g,
		catalog:  catalog,
		bus:      b,
		logger:   logger,
		metrics:  rec,
		rigs:     make(map[scene.NodeID]*Rig),
		Defaults: DefaultConfiguration(),
	}
}

func (f *Factory) Graph() scene.Graph { return f.graph }

// Start returns the rig named name, creating it when the scene has none.
func (f *Factory) Start(name string) (*Rig, error) {
	r, err := f.Find(name)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrRigNotFound) {
		return nil, err
	}
	namespace, short := splitQualified(name)
	return f.Create(short, namespace)
}

// Create builds a new rig with the default configuration.
func (f *Factory) Create(name, namespace string) (*Rig, error) {
	return f.CreateWithConfiguration(name, namespace, f.Defaults)
}

// CreateWithConfiguration builds a new rig: the meta node, the root transform,
// the component layer and the geometry layer.
func (f *Factory) CreateWithConfiguration(name, namespace string, cfg Configuration) (*Rig, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRigName, name)
	}
	for _, meta := range f.graph.NodesWithAttribute(hivenodes.AttrHiveType, KindRig) {
		if scene.MustString(f.graph, meta, AttrRigName) == name && scene.MustString(f.graph, meta, AttrNamespace) == namespace {
			return nil, fmt.Errorf("%w: %s", ErrRigExists, QualifiedName(namespace, name))
		}
	}

	g := f.graph
	namer := f.catalog.Naming().Namer(cfg.NamingPreset)
	rigName := func(typ string) string {
		return namer.Resolve(naming.RuleRigName, map[string]string{"rigName": name, "type": typ})
	}
	layerName := func(layer, typ string) string {
		return namer.Resolve(naming.RuleRigLayer, map[string]string{"rigName": name, "layerType": layer, "type": typ})
	}

	meta, err := g.CreateNode(scene.TypeNetwork, rigName(naming.TypeMeta), "")
	if err != nil {
		return nil, err
	}
	if err := hivenodes.Stamp(g, meta, KindRig, ""); err != nil {
		return nil, err
	}
	config, err := encoding.EncodeString(cfg)
	if err != nil {
		return nil, err
	}
	for _, s := range []scene.AttributeSpec{
		{Name: AttrRigName, Type: scene.AttrString, Value: name},
		{Name: AttrNamespace, Type: scene.AttrString, Value: namespace},
		{Name: AttrConfiguration, Type: scene.AttrString, Value: config},
	} {
		if err := g.AddAttribute(meta, s); err != nil {
			return nil, err
		}
	}

	root, err := g.CreateNode(scene.TypeTransform, rigName(naming.TypeHrc), "")
	if err != nil {
		return nil, err
	}
	if err := hivenodes.SetMessage(g, meta, AttrRootTransform, root); err != nil {
		return nil, err
	}

	compRoot, err := g.CreateNode(scene.TypeTransform, layerName(componentsLayerName, naming.TypeHrc), root)
	if err != nil {
		return nil, err
	}
	compMeta, err := g.CreateNode(scene.TypeNetwork, layerName(componentsLayerName, naming.TypeMeta), "")
	if err != nil {
		return nil, err
	}
	if err := errors.Join(
		hivenodes.Stamp(g, compMeta, KindComponentLayer, ""),
		hivenodes.SetMessage(g, compMeta, AttrRootTransform, compRoot),
		g.ConnectMeta(meta, compMeta),
	); err != nil {
		return nil, err
	}

	geo, err := layers.Create(g, definition.GeometryLayerType, layerName(geometryLayerName, naming.TypeHrc), root)
	if err != nil {
		return nil, err
	}
	if err := g.ConnectMeta(meta, geo.Meta()); err != nil {
		return nil, err
	}
	if err := errors.Join(g.SetLocked(root, true), g.SetLocked(compRoot, true)); err != nil {
		return nil, err
	}

	r := f.wrap(meta)
	r.logger.Info("rig created", log.String("namingPreset", cfg.NamingPreset))
	return r, nil
}

// wrap returns the rig behind meta. A configuration that cannot be decoded
// is logged and replaced by the defaults.
func (f *Factory) wrap(meta scene.NodeID) *Rig {
	if r, ok := f.rigs[meta]; ok && r.Exists() {
		return r
	}
	g := f.graph
	name := scene.MustString(g, meta, AttrRigName)
	namespace := scene.MustString(g, meta, AttrNamespace)
	full := QualifiedName(namespace, name)
	logger := f.logger.With(log.Rig(full))

	cfg := f.Defaults
	if raw := scene.MustString(g, meta, AttrConfiguration); raw != "" {
		decoded, err := encoding.DecodeString[Configuration](raw)
		if err != nil {
			logger.Warn("malformed rig configuration", log.Error(err))
		} else {
			cfg = decoded
		}
	}

	r := &Rig{
		graph:     g,
		catalog:   f.catalog,
		logger:    logger,
		metrics:   f.metrics,
		bus:       f.bus,
		scripts:   buildscript.NewDispatcher(f.bus, logger, full),
		meta:      meta,
		name:      name,
		namespace: namespace,
		config:    cfg,
	}
	_ = r.attachScripts()
	f.rigs[meta] = r
	return r
}

// Rigs returns every rig in the scene in creation order.
func (f *Factory) Rigs() []*Rig {
	for meta, r := range f.rigs {
		if !r.Exists() {
			delete(f.rigs, meta)
		}
	}
	var out []*Rig
	for _, meta := range f.graph.NodesWithAttribute(hivenodes.AttrHiveType, KindRig) {
		out = append(out, f.wrap(meta))
	}
	return out
}

// Find returns the rig named name, which may be "namespace:name". A bare name
// shared by rigs in different namespaces is ErrDuplicateRigName.
func (f *Factory) Find(name string) (*Rig, error) {
	namespace, short := splitQualified(name)
	qualified := strings.Contains(name, ":")
	var found []scene.NodeID
	for _, meta := range f.graph.NodesWithAttribute(hivenodes.AttrHiveType, KindRig) {
		if scene.MustString(f.graph, meta, AttrRigName) != short {
			continue
		}
		if qualified && scene.MustString(f.graph, meta, AttrNamespace) != namespace {
			continue
		}
		found = append(found, meta)
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRigNotFound, name)
	case 1:
		return f.wrap(found[0]), nil
	default:
		return nil, fmt.Errorf("%w: %s (%d rigs)", ErrDuplicateRigName, name, len(found))
	}
}

func splitQualified(name string) (namespace, short string) {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
