package definition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
)

// Permissions guard a driver or switch against edits. Absent flags allow the edit.
type Permissions struct {
	AllowRename *bool `json:"allowRename,omitempty" yaml:"allowRename,omitempty"`
	AllowDelete *bool `json:"allowDelete,omitempty" yaml:"allowDelete,omitempty"`
}

func (p Permissions) CanRename() bool { return p.AllowRename == nil || *p.AllowRename }
func (p Permissions) CanDelete() bool { return p.AllowDelete == nil || *p.AllowDelete }

// Protected reports whether the entry cannot be removed.
func (p Permissions) Protected() bool { return !p.CanDelete() }

// SpaceSwitchDriverDefinition is one selectable space.
type SpaceSwitchDriverDefinition struct {
	Label       string      `json:"label" yaml:"label"`
	Driver      string      `json:"driver,omitempty" yaml:"driver,omitempty"`
	Permissions Permissions `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// ControlPanelFilter places the switch attribute on the control panel.
type ControlPanelFilter struct {
	Group       string `json:"group,omitempty" yaml:"group,omitempty"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	InsertAfter string `json:"insertAfter,omitempty" yaml:"insertAfter,omitempty"`
}

// SpaceSwitchDefinition is one switchable attribute on a driven node.
type SpaceSwitchDefinition struct {
	Label              string                         `json:"label" yaml:"label"`
	Driven             string                         `json:"driven,omitempty" yaml:"driven,omitempty"`
	Type               string                         `json:"type,omitempty" yaml:"type,omitempty"`
	Drivers            []*SpaceSwitchDriverDefinition `json:"drivers,omitempty" yaml:"drivers,omitempty"`
	ControlPanelFilter ControlPanelFilter             `json:"controlPanelFilter,omitempty" yaml:"controlPanelFilter,omitempty"`
	Permissions        Permissions                    `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Active             *bool                          `json:"active,omitempty" yaml:"active,omitempty"`
}

// IsActive reports the active flag. Switches are active unless disabled.
func (s *SpaceSwitchDefinition) IsActive() bool { return s.Active == nil || *s.Active }

// Labels returns the driver labels in order.
func (s *SpaceSwitchDefinition) Labels() []string {
	out := make([]string, 0, len(s.Drivers))
	for _, d := range s.Drivers {
		out = append(out, d.Label)
	}
	return out
}

// Driver returns the driver with label, or nil.
func (s *SpaceSwitchDefinition) Driver(label string) *SpaceSwitchDriverDefinition {
	for _, d := range s.Drivers {
		if d.Label == label {
			return d
		}
	}
	return nil
}

// DefaultIndex returns the index of the default driver, 0 when unset.
func (s *SpaceSwitchDefinition) DefaultIndex() int {
	if i := slices.Index(s.Labels(), s.ControlPanelFilter.Default); i >= 0 {
		return i
	}
	return 0
}

// Validate checks labels and the default driver.
func (s *SpaceSwitchDefinition) Validate() error {
	if s.Label == "" {
		return ErrMissingLabel
	}
	seen := make(map[string]bool, len(s.Drivers))
	for _, d := range s.Drivers {
		if seen[d.Label] {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateDriver, s.Label, d.Label)
		}
		seen[d.Label] = true
	}
	if def := s.ControlPanelFilter.Default; def != "" && !seen[def] {
		return fmt.Errorf("%w: %s default %q", ErrInvalidDefaultDriver, s.Label, def)
	}
	return nil
}

// Equal reports deep equality.
func (s *SpaceSwitchDefinition) Equal(o *SpaceSwitchDefinition) bool {
	if s == nil || o == nil {
		return s == o
	}
	return reflect.DeepEqual(s, o)
}

// Difference returns the minimal serialized delta of s against base. The driver
// rules are:
//   - equal switches yield an empty map
//   - a base without drivers yields an empty map; such switches are stored in
//     full instead
//   - when the label order changed, protected drivers that may be renamed are
//     written as label only and protected drivers that may not be renamed are
//     omitted, everything else is written in full
//   - otherwise the full driver list is written when it differs
//
// Non driver fields are written when they differ from base.
func (s *SpaceSwitchDefinition) Difference(base *SpaceSwitchDefinition) map[string]any {
	out := make(map[string]any)
	if base == nil || len(base.Drivers) == 0 || s.Equal(base) {
		return out
	}
	if s.Driven != base.Driven {
		out["driven"] = s.Driven
	}
	if s.Type != base.Type {
		out["type"] = s.Type
	}
	if s.ControlPanelFilter != base.ControlPanelFilter {
		out["controlPanelFilter"] = s.ControlPanelFilter
	}
	if !reflect.DeepEqual(s.Permissions, base.Permissions) {
		out["permissions"] = s.Permissions
	}
	if s.IsActive() != base.IsActive() {
		out["active"] = s.IsActive()
	}

	if reflect.DeepEqual(s.Drivers, base.Drivers) {
		return out
	}
	var drivers []map[string]any
	if !slices.Equal(s.Labels(), base.Labels()) {
		for _, d := range s.Drivers {
			switch {
			case d.Permissions.Protected() && !d.Permissions.CanRename():
				continue
			case d.Permissions.Protected():
				drivers = append(drivers, map[string]any{"label": d.Label})
			default:
				drivers = append(drivers, driverMap(d))
			}
		}
	} else {
		for _, d := range s.Drivers {
			drivers = append(drivers, driverMap(d))
		}
	}
	out["drivers"] = drivers
	return out
}

func driverMap(d *SpaceSwitchDriverDefinition) map[string]any {
	m := map[string]any{"label": d.Label, "driver": d.Driver}
	if d.Permissions.AllowRename != nil || d.Permissions.AllowDelete != nil {
		m["permissions"] = d.Permissions
	}
	return m
}

// ApplyDifference rebuilds a switch from base and a delta produced by Difference.
// Label-only drivers take their body from base. Protected base drivers missing
// from the delta are put back at their base position.
func ApplyDifference(base *SpaceSwitchDefinition, diff map[string]any) (*SpaceSwitchDefinition, error) {
	out := base.Clone()
	if len(diff) == 0 {
		return out, nil
	}
	// round trip through JSON so both typed and decoded deltas are accepted
	raw, err := json.Marshal(diff)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	var delta struct {
		Label              *string             `json:"label"`
		Driven             *string             `json:"driven"`
		Type               *string             `json:"type"`
		ControlPanelFilter *ControlPanelFilter `json:"controlPanelFilter"`
		Permissions        *Permissions        `json:"permissions"`
		Active             *bool               `json:"active"`
		Drivers            []json.RawMessage   `json:"drivers"`
	}
	if err := json.Unmarshal(raw, &delta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if delta.Label != nil {
		out.Label = *delta.Label
	}
	if delta.Driven != nil {
		out.Driven = *delta.Driven
	}
	if delta.Type != nil {
		out.Type = *delta.Type
	}
	if delta.ControlPanelFilter != nil {
		out.ControlPanelFilter = *delta.ControlPanelFilter
	}
	if delta.Permissions != nil {
		out.Permissions = *delta.Permissions
	}
	if delta.Active != nil {
		out.Active = BoolPtr(*delta.Active)
	}
	if delta.Drivers == nil {
		return out, nil
	}

	drivers := make([]*SpaceSwitchDriverDefinition, 0, len(delta.Drivers))
	for _, item := range delta.Drivers {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		var d SpaceSwitchDriverDefinition
		if err := json.Unmarshal(item, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		if _, full := fields["driver"]; !full {
			if b := base.Driver(d.Label); b != nil {
				d = *b.clone()
			}
		}
		drivers = append(drivers, &d)
	}
	for i, b := range base.Drivers {
		if !b.Permissions.Protected() || slices.ContainsFunc(drivers, func(d *SpaceSwitchDriverDefinition) bool { return d.Label == b.Label }) {
			continue
		}
		drivers = slices.Insert(drivers, min(i, len(drivers)), b.clone())
	}
	out.Drivers = drivers
	return out, nil
}

// Clone deep copies the switch.
func (s *SpaceSwitchDefinition) Clone() *SpaceSwitchDefinition {
	if s == nil {
		return nil
	}
	out := *s
	out.Permissions = s.Permissions.clone()
	if s.Active != nil {
		out.Active = BoolPtr(*s.Active)
	}
	out.Drivers = make([]*SpaceSwitchDriverDefinition, 0, len(s.Drivers))
	for _, d := range s.Drivers {
		out.Drivers = append(out.Drivers, d.clone())
	}
	if len(out.Drivers) == 0 {
		out.Drivers = nil
	}
	return &out
}

func (d *SpaceSwitchDriverDefinition) clone() *SpaceSwitchDriverDefinition {
	out := *d
	out.Permissions = d.Permissions.clone()
	return &out
}

func (p Permissions) clone() Permissions {
	var out Permissions
	if p.AllowRename != nil {
		out.AllowRename = BoolPtr(*p.AllowRename)
	}
	if p.AllowDelete != nil {
		out.AllowDelete = BoolPtr(*p.AllowDelete)
	}
	return out
}

// MergeAttributesWithSpaceSwitches synthesizes one enum attribute per switch
// inside a copy of attrs. An attribute is placed after ControlPanelFilter.InsertAfter when
// that attribute exists, otherwise at the end of its group, which is introduced by
// a group header enum attribute. Existing switch attributes are replaced by
// updated copies and keep their value when still in range. With excludeInactive, attributes of
// inactive switches are removed instead.
func MergeAttributesWithSpaceSwitches(attrs []*AttributeDefinition, switches []*SpaceSwitchDefinition, excludeInactive bool) []*AttributeDefinition {
	out := slices.Clone(attrs)
	groupTail := make(map[string]string)

	for _, s := range switches {
		if excludeInactive && !s.IsActive() {
			out = slices.DeleteFunc(out, func(a *AttributeDefinition) bool { return a.Name == s.Label })
			continue
		}
		if len(s.Drivers) == 0 {
			continue
		}
		labels := s.Labels()
		def := s.DefaultIndex()

		if i := slices.IndexFunc(out, func(a *AttributeDefinition) bool { return a.Name == s.Label }); i >= 0 {
			existing := out[i].Clone()
			out[i] = existing
			existing.Type = "enum"
			existing.Enums = labels
			existing.Default = def
			existing.Keyable = true
			if idx, ok := asInt(existing.Value); !ok || idx < 0 || idx >= len(labels) {
				existing.Value = def
			}
			continue
		}

		attr := &AttributeDefinition{
			Name:    s.Label,
			Type:    "enum",
			Enums:   labels,
			Value:   def,
			Default: def,
			Keyable: true,
		}
		anchor := s.ControlPanelFilter.InsertAfter
		if anchor == "" || findAttr(out, anchor) == nil {
			group := s.ControlPanelFilter.Group
			if group == "" {
				group = "spaces"
			}
			if findAttr(out, group) == nil {
				out = append(out, &AttributeDefinition{
					Name:       group,
					Type:       "enum",
					Enums:      []string{"___"},
					ChannelBox: true,
					Locked:     true,
				})
			}
			anchor = group
			if tail, ok := groupTail[group]; ok && findAttr(out, tail) != nil {
				anchor = tail
			}
			groupTail[group] = s.Label
		}
		idx := slices.IndexFunc(out, func(a *AttributeDefinition) bool { return a.Name == anchor })
		out = slices.Insert(out, idx+1, attr)
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
