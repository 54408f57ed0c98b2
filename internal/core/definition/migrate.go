package definition

import (
	"github.com/Masterminds/semver/v3"
)

// LatestVersion is the schema version every loaded definition is stamped with.
const LatestVersion = "1.0.0"

var latest = semver.MustParse(LatestVersion)

// migration is one step applied while loading. Steps run in order.
type migration struct {
	name  string
	apply func(def, original *ComponentDefinition)
}

// migrations only carries the rig-layer rule: the settings schema of the rig layer
// is always taken from the component type's template. Version specific upgrades
// are not defined.
var migrations = []migration{
	{
		name: "rigLayerSettings",
		apply: func(def, original *ComponentDefinition) {
			if original == nil || original.RigLayer.Settings == nil {
				return
			}
			def.RigLayer.Settings = cloneRigSettings(original.RigLayer.Settings)
		},
	},
}

// ParseVersion reads a schema version. Empty or malformed versions are 0.0.0.
func ParseVersion(v string) *semver.Version {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return semver.MustParse("0.0.0")
	}
	return parsed
}

// NeedsMigration reports whether version is older than LatestVersion.
func NeedsMigration(version string) bool {
	return ParseVersion(version).LessThan(latest)
}

// MigrateToLatestVersion returns a migrated copy of def. Every step runs on every
// load; the version is then raised to LatestVersion. Newer versions are kept.
func MigrateToLatestVersion(def, original *ComponentDefinition) *ComponentDefinition {
	out := def.Clone()
	for _, m := range migrations {
		m.apply(out, original)
	}
	if NeedsMigration(out.Version) {
		out.Version = LatestVersion
	}
	return out
}

// LoadDefinition migrates data, merges in anything original adds, and returns a
// document carrying original as its baseline.
func LoadDefinition(data, original *ComponentDefinition) *ComponentDefinition {
	if data == nil {
		data = &ComponentDefinition{}
		if original != nil {
			data = original.Clone()
		}
	}
	out := MigrateToLatestVersion(data, original)
	if original != nil {
		out.MergeTemplate(original)
		if out.Type == "" {
			out.Type = original.Type
		}
	}
	if out.Side == "" {
		out.Side = DefaultSide
	}
	out.original = original
	return out
}

// MergeTemplate adds settings, metadata and space switches that the template
// declares and d lacks. Existing entries are left alone.
func (d *ComponentDefinition) MergeTemplate(template *ComponentDefinition) {
	for _, t := range []LayerType{GuideLayerType, InputLayerType, OutputLayerType, DeformLayerType} {
		dst, src := d.Layer(t), template.Layer(t)
		dst.Settings = addMissingAttrs(dst.Settings, src.Settings)
		dst.Metadata = addMissingAttrs(dst.Metadata, src.Metadata)
	}
	d.RigLayer.Metadata = addMissingAttrs(d.RigLayer.Metadata, template.RigLayer.Metadata)
	for node, attrs := range template.RigLayer.Settings {
		if d.RigLayer.Settings == nil {
			d.RigLayer.Settings = make(map[string][]*AttributeDefinition)
		}
		d.RigLayer.Settings[node] = addMissingAttrs(d.RigLayer.Settings[node], attrs)
	}
	for _, s := range template.SpaceSwitching {
		if d.SpaceSwitch(s.Label) == nil {
			d.SpaceSwitching = append(d.SpaceSwitching, s.Clone())
		}
	}
}

func addMissingAttrs(dst, src []*AttributeDefinition) []*AttributeDefinition {
	for _, a := range src {
		if findAttr(dst, a.Name) == nil {
			dst = append(dst, a.Clone())
		}
	}
	return dst
}
