package rig

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/naming"
)

// ScriptConfig is one build script attached to a rig with its persisted
// properties.
type ScriptConfig struct {
	ID         string                 `json:"id" yaml:"id"`
	Properties buildscript.Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Configuration is the per rig build configuration. It is stored as JSON on the
// rig meta node.
type Configuration struct {
	NamingPreset string         `json:"namingPreset" yaml:"namingPreset"`
	BuildScripts []ScriptConfig `json:"buildScripts,omitempty" yaml:"buildScripts,omitempty"`

	BlackBox                    bool `json:"blackBox" yaml:"blackBox"`
	UseProxyAttributes          bool `json:"useProxyAttributes" yaml:"useProxyAttributes"`
	BuildDeformationMarkingMenu bool `json:"buildDeformationMarkingMenu" yaml:"buildDeformationMarkingMenu"`
	HideControlShapesInOutliner bool `json:"hideControlShapesInOutliner" yaml:"hideControlShapesInOutliner"`
	DeleteStaticGuideNodes      bool `json:"deleteStaticGuideNodes" yaml:"deleteStaticGuideNodes"`
	SelectionChildHighlighting  bool `json:"selectionChildHighlighting" yaml:"selectionChildHighlighting"`
	AutoAlignGuides             bool `json:"autoAlignGuides" yaml:"autoAlignGuides"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		NamingPreset:                naming.DefaultPresetName,
		UseProxyAttributes:          true,
		BuildDeformationMarkingMenu: true,
		HideControlShapesInOutliner: true,
		SelectionChildHighlighting:  true,
		AutoAlignGuides:             true,
	}
}

// ParseConfiguration decodes a YAML or JSON configuration over the defaults.
func ParseConfiguration(data []byte) (Configuration, error) {
	cfg := DefaultConfiguration()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfigData, err)
	}
	return cfg, nil
}

// Options returns the component switches the configuration implies.
func (c Configuration) Options() component.Options {
	return component.Options{
		BlackBox:                    c.BlackBox,
		UseProxyAttributes:          c.UseProxyAttributes,
		BuildDeformationMarkingMenu: c.BuildDeformationMarkingMenu,
		DeleteStaticGuideNodes:      c.DeleteStaticGuideNodes,
		AutoAlignGuides:             c.AutoAlignGuides,
	}
}

// Script returns the configuration of the script with id.
func (c Configuration) Script(id string) (ScriptConfig, bool) {
	for _, s := range c.BuildScripts {
		if s.ID == id {
			return s, true
		}
	}
	return ScriptConfig{}, false
}

// WithScript returns a copy with the script added or its properties replaced.
func (c Configuration) WithScript(id string, props buildscript.Properties) Configuration {
	out := c
	out.BuildScripts = make([]ScriptConfig, 0, len(c.BuildScripts)+1)
	found := false
	for _, s := range c.BuildScripts {
		if s.ID == id {
			s.Properties = props
			found = true
		}
		out.BuildScripts = append(out.BuildScripts, s)
	}
	if !found {
		out.BuildScripts = append(out.BuildScripts, ScriptConfig{ID: id, Properties: props})
	}
	return out
}
