package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/hive/internal/core/observability/log"
)

// Persisted sections of a layer.
const (
	SectionDAG      = "dag"
	SectionSettings = "settings"
	SectionMetadata = "metadata"
	SectionGraphs   = "graphs"
)

// Meta-node attributes holding the non-layer parts of the document.
const (
	AttrSpaceSwitching = "spaceSwitching"
	AttrInfo           = "info"
)

// SceneAttrName returns the meta-node attribute for one layer section, e.g.
// "guideLayerDag".
func SceneAttrName(layer LayerType, section string) string {
	return string(layer) + strings.ToUpper(section[:1]) + section[1:]
}

func layerSections(layer LayerType) []string {
	if layer == GuideLayerType || layer == RigLayerType {
		return []string{SectionDAG, SectionSettings, SectionMetadata, SectionGraphs}
	}
	return []string{SectionDAG, SectionSettings, SectionMetadata}
}

// SceneAttributeNames lists every meta-node attribute ToSceneData produces.
func SceneAttributeNames() []string {
	var out []string
	for _, l := range LayerTypes {
		for _, s := range layerSections(l) {
			out = append(out, SceneAttrName(l, s))
		}
	}
	return append(out, AttrSpaceSwitching, AttrInfo)
}

type info struct {
	Name         string                  `json:"name"`
	Side         string                  `json:"side"`
	Type         string                  `json:"type"`
	Version      string                  `json:"version,omitempty"`
	Description  string                  `json:"description,omitempty"`
	Parent       string                  `json:"parent,omitempty"`
	NamingPreset string                  `json:"namingPreset,omitempty"`
	MarkingMenus MarkingMenus            `json:"markingMenus"`
	Connections  []*ConnectionDefinition `json:"connections,omitempty"`
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// ToSceneData encodes the document as meta-node attribute values. Space switches
// that exist in the baseline with drivers are stored as deltas against it.
func (d *ComponentDefinition) ToSceneData() map[string]string {
	out := make(map[string]string)
	for _, l := range []LayerType{GuideLayerType, InputLayerType, OutputLayerType, DeformLayerType} {
		layer := d.Layer(l)
		out[SceneAttrName(l, SectionDAG)] = mustJSON(nonNil(layer.DAG))
		out[SceneAttrName(l, SectionSettings)] = mustJSON(nonNil(layer.Settings))
		out[SceneAttrName(l, SectionMetadata)] = mustJSON(nonNil(layer.Metadata))
	}
	out[SceneAttrName(GuideLayerType, SectionGraphs)] = mustJSON(nonNil(d.GuideLayer.Graphs))

	out[SceneAttrName(RigLayerType, SectionDAG)] = mustJSON(nonNil(d.RigLayer.DAG))
	settings := d.RigLayer.Settings
	if settings == nil {
		settings = map[string][]*AttributeDefinition{}
	}
	out[SceneAttrName(RigLayerType, SectionSettings)] = mustJSON(settings)
	out[SceneAttrName(RigLayerType, SectionMetadata)] = mustJSON(nonNil(d.RigLayer.Metadata))
	out[SceneAttrName(RigLayerType, SectionGraphs)] = mustJSON(nonNil(d.RigLayer.Graphs))

	records := make([]map[string]any, 0, len(d.SpaceSwitching))
	for _, s := range d.SpaceSwitching {
		var base *SpaceSwitchDefinition
		if d.original != nil {
			base = d.original.SpaceSwitch(s.Label)
		}
		if base != nil && len(base.Drivers) > 0 {
			rec := s.Difference(base)
			rec["label"] = s.Label
			records = append(records, rec)
			continue
		}
		var full map[string]any
		_ = json.Unmarshal([]byte(mustJSON(s)), &full)
		records = append(records, full)
	}
	out[AttrSpaceSwitching] = mustJSON(records)

	out[AttrInfo] = mustJSON(info{
		Name:         d.Name,
		Side:         d.Side,
		Type:         d.Type,
		Version:      d.Version,
		Description:  d.Description,
		Parent:       d.Parent,
		NamingPreset: d.NamingPreset,
		MarkingMenus: d.MarkingMenus,
		Connections:  d.Connections,
	})
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// rawDefinition is a decoded scene payload with space switch records still in
// their stored form.
type rawDefinition struct {
	def      *ComponentDefinition
	switches []map[string]any
}

func decodeSection(logger log.Log, raw map[string]string, key string, dst any) {
	value, ok := raw[key]
	if !ok || strings.TrimSpace(value) == "" {
		return
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		logger.Warn("malformed definition attribute, using an empty value",
			log.String("attribute", key), log.Error(err))
	}
}

func parseRaw(raw map[string]string, logger log.Log) rawDefinition {
	if logger == nil {
		logger = log.Nop()
	}
	def := &ComponentDefinition{}

	var meta info
	decodeSection(logger, raw, AttrInfo, &meta)
	def.Name, def.Side, def.Type, def.Version = meta.Name, meta.Side, meta.Type, meta.Version
	def.Description, def.Parent, def.NamingPreset = meta.Description, meta.Parent, meta.NamingPreset
	def.MarkingMenus, def.Connections = meta.MarkingMenus, meta.Connections

	for _, l := range []LayerType{GuideLayerType, InputLayerType, OutputLayerType, DeformLayerType} {
		layer := def.Layer(l)
		decodeSection(logger, raw, SceneAttrName(l, SectionDAG), &layer.DAG)
		decodeSection(logger, raw, SceneAttrName(l, SectionSettings), &layer.Settings)
		decodeSection(logger, raw, SceneAttrName(l, SectionMetadata), &layer.Metadata)
	}
	decodeSection(logger, raw, SceneAttrName(GuideLayerType, SectionGraphs), &def.GuideLayer.Graphs)
	decodeSection(logger, raw, SceneAttrName(RigLayerType, SectionDAG), &def.RigLayer.DAG)
	decodeSection(logger, raw, SceneAttrName(RigLayerType, SectionSettings), &def.RigLayer.Settings)
	decodeSection(logger, raw, SceneAttrName(RigLayerType, SectionMetadata), &def.RigLayer.Metadata)
	decodeSection(logger, raw, SceneAttrName(RigLayerType, SectionGraphs), &def.RigLayer.Graphs)

	var records []map[string]any
	decodeSection(logger, raw, AttrSpaceSwitching, &records)
	return rawDefinition{def: def, switches: records}
}

// ParseRawDefinition decodes meta-node attribute values. Malformed sections are
// logged and left empty. Space switch deltas are decoded as they are stored.
func ParseRawDefinition(raw map[string]string, logger log.Log) *ComponentDefinition {
	r := parseRaw(raw, logger)
	for _, rec := range r.switches {
		if s, err := decodeSwitch(rec); err == nil {
			r.def.SpaceSwitching = append(r.def.SpaceSwitching, s)
		}
	}
	return r.def
}

// FromSceneData rebuilds a definition from meta-node attribute values, applying
// stored space switch deltas to original and loading the result against it.
func FromSceneData(raw map[string]string, original *ComponentDefinition, logger log.Log) *ComponentDefinition {
	if logger == nil {
		logger = log.Nop()
	}
	r := parseRaw(raw, logger)
	for _, rec := range r.switches {
		label, _ := rec["label"].(string)
		var base *SpaceSwitchDefinition
		if original != nil {
			base = original.SpaceSwitch(label)
		}
		var (
			s   *SpaceSwitchDefinition
			err error
		)
		if base != nil && len(base.Drivers) > 0 {
			s, err = ApplyDifference(base, rec)
		} else {
			s, err = decodeSwitch(rec)
		}
		if err != nil {
			logger.Warn("dropping malformed space switch", log.String("label", label), log.Error(err))
			continue
		}
		r.def.SpaceSwitching = append(r.def.SpaceSwitching, s)
	}
	return LoadDefinition(r.def, original)
}

func decodeSwitch(rec map[string]any) (*SpaceSwitchDefinition, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var s SpaceSwitchDefinition
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &s, nil
}

// Fingerprints hashes scene data values so unchanged attributes can be skipped
// when writing back to a meta-node.
func Fingerprints(data map[string]string) map[string]uint64 {
	out := make(map[string]uint64, len(data))
	for k, v := range data {
		out[k] = xxhash.Sum64String(v)
	}
	return out
}

// Parse decodes a template document in JSON or YAML.
func Parse(data []byte) (*ComponentDefinition, error) {
	var def ComponentDefinition
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &def); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		return &def, nil
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	normalizeYAML(&def)
	return &def, nil
}

// normalizeYAML converts YAML decoded values into the shapes JSON decoding
// produces so both template formats compare and persist the same way.
func normalizeYAML(def *ComponentDefinition) {
	fix := func(attrs []*AttributeDefinition) {
		for _, a := range attrs {
			a.Value = jsonShape(a.Value)
			a.Default = jsonShape(a.Default)
		}
	}
	for _, l := range []LayerType{GuideLayerType, InputLayerType, OutputLayerType, DeformLayerType} {
		layer := def.Layer(l)
		fix(layer.Settings)
		fix(layer.Metadata)
		for _, n := range layer.DAG {
			fix(n.Attributes)
		}
	}
	for _, attrs := range def.RigLayer.Settings {
		fix(attrs)
	}
	fix(def.RigLayer.Metadata)
	for _, n := range def.RigLayer.DAG {
		fix(n.Attributes)
	}
}

func jsonShape(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
