package layers

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/hivenodes"
	"github.com/zeusync/hive/internal/core/scene"
	"github.com/zeusync/hive/pkg/encoding"
)

const (
	// AttrSpaceSwitches is the rig meta attribute recording every space switch.
	AttrSpaceSwitches = "spaceSwitches"
	// MetaSpaceSwitchLabel tags a space switch constraint with its label.
	MetaSpaceSwitchLabel = "spaceSwitch"
)

// SpaceSwitchSpec is the request to build one space switch constraint.
type SpaceSwitchSpec struct {
	Label          string
	Driven         scene.NodeID
	Type           scene.ConstraintType
	Drivers        []scene.ConstraintDriver
	MaintainOffset bool
	SwitchAttr     scene.Plug
	DefaultDriver  int
}

// spaceSwitchRecord is the persisted part of a space switch.
type spaceSwitchRecord struct {
	Label  string       `json:"label"`
	Driven scene.NodeID `json:"driven"`
}

// RigLayer owns the animation controls of a component.
type RigLayer struct {
	*Layer
}

func (l *RigLayer) Control(id string) (*hivenodes.ControlNode, error) {
	n := l.find(hivenodes.KindControl, id)
	if n == "" {
		return nil, fmt.Errorf("%w: %s", ErrControlNotFound, id)
	}
	return hivenodes.AsControl(l.graph, n)
}

// Controls lists every control in hierarchy order.
func (l *RigLayer) Controls() []*hivenodes.ControlNode {
	var out []*hivenodes.ControlNode
	for _, n := range l.nodes(hivenodes.KindControl) {
		if c, err := hivenodes.AsControl(l.graph, n); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// CreateControl creates a control below parent, the layer root when parent is "".
func (l *RigLayer) CreateControl(name string, def *definition.NodeDefinition, parent scene.NodeID) (*hivenodes.ControlNode, error) {
	if def.ID == "" {
		return nil, definition.ErrMissingID
	}
	if parent == "" {
		parent = l.parentFor(hivenodes.KindControl, def.Parent)
	}
	return hivenodes.CreateControl(l.graph, name, parent, def)
}

// ControlPanel returns the control panel settings node.
func (l *RigLayer) ControlPanel() (*hivenodes.SettingsNode, error) {
	return l.SettingsNode(definition.ControlPanelName)
}

// ApplySettings writes every settings section, naming new settings nodes with
// nameFor(section).
func (l *RigLayer) ApplySettings(settings map[string][]*definition.AttributeDefinition, nameFor func(section string) string) error {
	var errs []error
	for _, section := range sortedKeys(settings) {
		if err := l.UpdateSettings(nameFor(section), section, settings[section]); err != nil {
			errs = append(errs, fmt.Errorf("settings %s: %w", section, err))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (l *RigLayer) records() []spaceSwitchRecord {
	recs, _ := encoding.DecodeString[[]spaceSwitchRecord](l.MetaString(AttrSpaceSwitches))
	return recs
}

func (l *RigLayer) writeRecords(recs []spaceSwitchRecord) error {
	if recs == nil {
		recs = []spaceSwitchRecord{}
	}
	s, err := encoding.EncodeString(recs)
	if err != nil {
		return err
	}
	return l.SetMetaString(AttrSpaceSwitches, s)
}

// CreateSpaceSwitch records the switch in the layer metadata and builds its
// constraint. A switch with the same label and driven node is replaced.
func (l *RigLayer) CreateSpaceSwitch(spec SpaceSwitchSpec) (scene.Constraint, error) {
	if spec.Label == "" {
		return scene.Constraint{}, fmt.Errorf("%w: space switch label", ErrInvalidLayerArg)
	}
	if old, err := l.SpaceSwitch(spec.Label); err == nil && old.Driven == spec.Driven {
		if err := l.graph.DeleteConstraint(old.ID); err != nil {
			return scene.Constraint{}, err
		}
	}

	recs := slices.DeleteFunc(l.records(), func(r spaceSwitchRecord) bool { return r.Label == spec.Label })
	recs = append(recs, spaceSwitchRecord{Label: spec.Label, Driven: spec.Driven})
	if err := l.writeRecords(recs); err != nil {
		return scene.Constraint{}, err
	}

	typ := spec.Type
	if typ == "" {
		typ = scene.ConstraintParent
	}
	id, err := l.graph.CreateConstraint(scene.ConstraintSpec{
		Type:           typ,
		Name:           l.graph.Name(spec.Driven) + "_" + spec.Label + "_cns",
		Driven:         spec.Driven,
		Drivers:        spec.Drivers,
		MaintainOffset: spec.MaintainOffset,
		Trace:          true,
		SwitchAttr:     spec.SwitchAttr,
		DefaultDriver:  spec.DefaultDriver,
		Metadata:       map[string]string{MetaSpaceSwitchLabel: spec.Label},
	})
	if err != nil {
		return scene.Constraint{}, fmt.Errorf("space switch %s: %w", spec.Label, err)
	}
	return l.graph.Constraint(id)
}

// SpaceSwitches re-derives the live switch constraints from the layer metadata,
// in creation order. Records whose constraint is gone are skipped.
func (l *RigLayer) SpaceSwitches() []scene.Constraint {
	var out []scene.Constraint
	for _, r := range l.records() {
		if c, ok := l.constraintFor(r); ok {
			out = append(out, c)
		}
	}
	return out
}

// SpaceSwitch returns the constraint of the switch with label.
func (l *RigLayer) SpaceSwitch(label string) (scene.Constraint, error) {
	for _, r := range l.records() {
		if r.Label != label {
			continue
		}
		if c, ok := l.constraintFor(r); ok {
			return c, nil
		}
	}
	return scene.Constraint{}, fmt.Errorf("%w: %s", ErrSpaceSwitchNotFound, label)
}

func (l *RigLayer) constraintFor(r spaceSwitchRecord) (scene.Constraint, bool) {
	if !l.graph.Exists(r.Driven) {
		return scene.Constraint{}, false
	}
	for _, c := range l.graph.Constraints(r.Driven) {
		if c.Metadata[MetaSpaceSwitchLabel] == r.Label {
			return c, true
		}
	}
	return scene.Constraint{}, false
}

// DeleteSpaceSwitch removes the switch constraint and its record.
func (l *RigLayer) DeleteSpaceSwitch(label string) error {
	c, err := l.SpaceSwitch(label)
	if err == nil {
		if err := l.graph.DeleteConstraint(c.ID); err != nil {
			return err
		}
	}
	recs := l.records()
	n := len(recs)
	recs = slices.DeleteFunc(recs, func(r spaceSwitchRecord) bool { return r.Label == label })
	if len(recs) == n {
		return fmt.Errorf("%w: %s", ErrSpaceSwitchNotFound, label)
	}
	return l.writeRecords(recs)
}

// SerializeFromScene reads controls, every settings node and the metadata.
func (l *RigLayer) SerializeFromScene() *definition.RigLayerDefinition {
	out := &definition.RigLayerDefinition{Settings: make(map[string][]*definition.AttributeDefinition)}
	for _, c := range l.Controls() {
		out.DAG = append(out.DAG, c.Serialize())
	}
	for _, s := range l.SettingsNodes() {
		out.Settings[s.ID()] = s.Serialize()
	}
	out.Metadata = l.Metadata()
	return out
}
