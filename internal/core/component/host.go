package component

import (
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/observability/metrics"
	"github.com/zeusync/hive/internal/core/scene"
)

// Host is the rig a component lives in. Components reach other components only
// through FindComponent, so the rig stays the single owner of the arena.
type Host interface {
	Graph() scene.Graph
	Logger() log.Log
	Metrics() metrics.Recorder
	Namer() naming.Namer
	Options() Options

	// ComponentRoot is the transform component hierarchies are created under.
	ComponentRoot() scene.NodeID
	// ComponentLayerMeta is the meta parent of components without a parent.
	ComponentLayerMeta() scene.NodeID

	FindComponent(name, side string) (*Component, error)
}

// Options are the rig wide switches that change how stages finish.
type Options struct {
	// BlackBox closes the component containers when polishing.
	BlackBox bool
	// UseProxyAttributes publishes control panel attributes on every control.
	UseProxyAttributes bool
	// BuildDeformationMarkingMenu registers the deform layout on the deform layer.
	BuildDeformationMarkingMenu bool
	// DeleteStaticGuideNodes removes the guide layer when polishing.
	DeleteStaticGuideNodes bool
	// AutoAlignGuides aims guides flagged autoAlign at their children after a
	// guide build.
	AutoAlignGuides bool
}
