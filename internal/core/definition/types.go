// Package definition holds the declarative, serializable component document and
// the merge, diff and migration rules that keep it in sync with a live scene.
// It has no scene dependency.
package definition

// LayerType names a component layer. The values double as persisted attribute
// prefixes and as the layer segment of driver expressions.
type LayerType string

const (
	GuideLayerType    LayerType = "guideLayer"
	InputLayerType    LayerType = "inputLayer"
	OutputLayerType   LayerType = "outputLayer"
	DeformLayerType   LayerType = "deformLayer"
	RigLayerType      LayerType = "rigLayer"
	GeometryLayerType LayerType = "geometryLayer"
)

// LayerTypes lists the persisted layers in build order.
var LayerTypes = []LayerType{GuideLayerType, InputLayerType, OutputLayerType, DeformLayerType, RigLayerType}

// Node kinds stored in NodeDefinition.Type.
const (
	NodeTransform = "transform"
	NodeGuide     = "guide"
	NodeJoint     = "joint"
	NodeControl   = "control"
	NodeInput     = "input"
	NodeOutput    = "output"
)

// Well known ids and names.
const (
	RootID           = "root"
	ControlPanelName = "controlPanel"
	DefaultSide      = "M"
)

// AttributeDefinition describes one setting or metadata attribute.
type AttributeDefinition struct {
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type,omitempty" yaml:"type,omitempty"`
	Value      any      `json:"value,omitempty" yaml:"value,omitempty"`
	Default    any      `json:"default,omitempty" yaml:"default,omitempty"`
	Min        *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Enums      []string `json:"enums,omitempty" yaml:"enums,omitempty"`
	Keyable    bool     `json:"keyable,omitempty" yaml:"keyable,omitempty"`
	ChannelBox bool     `json:"channelBox,omitempty" yaml:"channelBox,omitempty"`
	Locked     bool     `json:"locked,omitempty" yaml:"locked,omitempty"`
}

// TransformDefinition is a translate/rotate/scale triple. Nil vectors are absent.
type TransformDefinition struct {
	Translate []float64 `json:"translate,omitempty" yaml:"translate,omitempty"`
	Rotate    []float64 `json:"rotate,omitempty" yaml:"rotate,omitempty"`
	Scale     []float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// NodeDefinition is one node of a layer DAG. Transforms are world space. Nil
// slices and pointers mean "not specified" so partial payloads can be merged.
type NodeDefinition struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`

	Translate []float64 `json:"translate,omitempty" yaml:"translate,omitempty"`
	Rotate    []float64 `json:"rotate,omitempty" yaml:"rotate,omitempty"`
	Scale     []float64 `json:"scale,omitempty" yaml:"scale,omitempty"`

	// control and guide shapes
	Shape          string               `json:"shape,omitempty" yaml:"shape,omitempty"`
	Color          []float64            `json:"color,omitempty" yaml:"color,omitempty"`
	ShapeTransform *TransformDefinition `json:"shapeTransform,omitempty" yaml:"shapeTransform,omitempty"`
	PivotShape     string               `json:"pivotShape,omitempty" yaml:"pivotShape,omitempty"`
	PivotColor     []float64            `json:"pivotColor,omitempty" yaml:"pivotColor,omitempty"`

	// guide auto alignment
	AutoAlign *bool     `json:"autoAlign,omitempty" yaml:"autoAlign,omitempty"`
	AimVector []float64 `json:"autoAlignAimVector,omitempty" yaml:"autoAlignAimVector,omitempty"`
	UpVector  []float64 `json:"autoAlignUpVector,omitempty" yaml:"autoAlignUpVector,omitempty"`

	// Internal nodes survive purges of nodes missing from an incoming state.
	Internal   bool                   `json:"internal,omitempty" yaml:"internal,omitempty"`
	Attributes []*AttributeDefinition `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// GraphDefinition is a named node graph stored with the guide or rig layer.
type GraphDefinition struct {
	Name string         `json:"name" yaml:"name"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// ConnectionDriver addresses a driver node as a component token plus node id.
type ConnectionDriver struct {
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Component string `json:"component" yaml:"component"`
	Layer     string `json:"layer,omitempty" yaml:"layer,omitempty"`
	ID        string `json:"id" yaml:"id"`
}

// ConnectionDefinition is one serialized upstream constraint binding onto an
// input node of the owning component.
type ConnectionDefinition struct {
	Driven         string             `json:"driven" yaml:"driven"`
	Type           string             `json:"type" yaml:"type"`
	Drivers        []ConnectionDriver `json:"drivers" yaml:"drivers"`
	MaintainOffset bool               `json:"maintainOffset,omitempty" yaml:"maintainOffset,omitempty"`
}

// MarkingMenus holds the layout ids registered per stage.
type MarkingMenus struct {
	Guide  string `json:"guide,omitempty" yaml:"guide,omitempty"`
	Deform string `json:"deform,omitempty" yaml:"deform,omitempty"`
	Rig    string `json:"rig,omitempty" yaml:"rig,omitempty"`
}

// LayerDefinition is the part every layer document shares.
type LayerDefinition struct {
	DAG      []*NodeDefinition      `json:"dag,omitempty" yaml:"dag,omitempty"`
	Settings []*AttributeDefinition `json:"settings,omitempty" yaml:"settings,omitempty"`
	Metadata []*AttributeDefinition `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type GuideLayerDefinition struct {
	LayerDefinition `yaml:",inline"`
	Graphs          []*GraphDefinition `json:"graphs,omitempty" yaml:"graphs,omitempty"`
}

type InputLayerDefinition struct {
	LayerDefinition `yaml:",inline"`
}

type OutputLayerDefinition struct {
	LayerDefinition `yaml:",inline"`
}

type DeformLayerDefinition struct {
	LayerDefinition `yaml:",inline"`
}

// RigLayerDefinition keys its settings per settings node name since a rig layer
// can host several settings nodes (the control panel being the main one).
type RigLayerDefinition struct {
	DAG      []*NodeDefinition                 `json:"dag,omitempty" yaml:"dag,omitempty"`
	Settings map[string][]*AttributeDefinition `json:"settings,omitempty" yaml:"settings,omitempty"`
	Metadata []*AttributeDefinition            `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Graphs   []*GraphDefinition                `json:"graphs,omitempty" yaml:"graphs,omitempty"`
}

// ComponentDefinition is the root document for one component.
type ComponentDefinition struct {
	Name         string                  `json:"name" yaml:"name"`
	Side         string                  `json:"side" yaml:"side"`
	Type         string                  `json:"type" yaml:"type"`
	Version      string                  `json:"version,omitempty" yaml:"version,omitempty"`
	Description  string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Parent       string                  `json:"parent,omitempty" yaml:"parent,omitempty"`
	NamingPreset string                  `json:"namingPreset,omitempty" yaml:"namingPreset,omitempty"`
	MarkingMenus MarkingMenus            `json:"markingMenus,omitempty" yaml:"markingMenus,omitempty"`
	Connections  []*ConnectionDefinition `json:"connections,omitempty" yaml:"connections,omitempty"`

	GuideLayer  GuideLayerDefinition  `json:"guideLayer" yaml:"guideLayer"`
	InputLayer  InputLayerDefinition  `json:"inputLayer" yaml:"inputLayer"`
	OutputLayer OutputLayerDefinition `json:"outputLayer" yaml:"outputLayer"`
	DeformLayer DeformLayerDefinition `json:"deformLayer" yaml:"deformLayer"`
	RigLayer    RigLayerDefinition    `json:"rigLayer" yaml:"rigLayer"`

	SpaceSwitching []*SpaceSwitchDefinition `json:"spaceSwitching,omitempty" yaml:"spaceSwitching,omitempty"`

	original *ComponentDefinition
}

// Original returns the baseline the definition was loaded against, if any.
func (d *ComponentDefinition) Original() *ComponentDefinition { return d.original }

// SetOriginal replaces the baseline.
func (d *ComponentDefinition) SetOriginal(original *ComponentDefinition) { d.original = original }

// Token returns "name:side".
func (d *ComponentDefinition) Token() string { return d.Name + ":" + d.Side }

// Layer returns the shared part of a non-rig layer, or nil.
func (d *ComponentDefinition) Layer(t LayerType) *LayerDefinition {
	switch t {
	case GuideLayerType:
		return &d.GuideLayer.LayerDefinition
	case InputLayerType:
		return &d.InputLayer.LayerDefinition
	case OutputLayerType:
		return &d.OutputLayer.LayerDefinition
	case DeformLayerType:
		return &d.DeformLayer.LayerDefinition
	default:
		return nil
	}
}

// SpaceSwitch returns the switch with the given label, or nil.
func (d *ComponentDefinition) SpaceSwitch(label string) *SpaceSwitchDefinition {
	for _, s := range d.SpaceSwitching {
		if s.Label == label {
			return s
		}
	}
	return nil
}

// BoolPtr is a helper for optional flags.
func BoolPtr(v bool) *bool { return &v }
