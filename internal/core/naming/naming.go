// Package naming resolves symbolic name templates such as
// "{componentName}_{side}_{id}_{type}" into concrete scene names.
package naming

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrPresetNotFound = errors.New("naming preset not found")
	ErrRuleNotFound   = errors.New("naming rule not found")
	ErrPresetCycle    = errors.New("naming preset inheritance cycle")
)

// DefaultPresetName is the preset every other preset eventually inherits from.
const DefaultPresetName = "default"

// Rule names used by the build pipeline.
const (
	RuleComponentName = "componentName"
	RuleObject        = "object"
	RuleLayerRoot     = "layerHrc"
	RuleSettings      = "settingsName"
	RuleContainer     = "containerName"
	RuleRigName       = "rigName"
	RuleRigLayer      = "rigLayerName"
	RuleSpaceSwitch   = "spaceSwitch"
)

// Type tokens mapped to suffixes.
const (
	TypeGuide         = "guide"
	TypeJoint         = "joint"
	TypeControl       = "control"
	TypeInput         = "input"
	TypeOutput        = "output"
	TypeSrt           = "srt"
	TypeHrc           = "hrc"
	TypeSettings      = "settings"
	TypeAnnotation    = "annotation"
	TypeContainer     = "container"
	TypeMeta          = "meta"
	TypeConstraint    = "constraint"
	TypeLocator       = "locator"
	TypeShape         = "shape"
	TypeUtility       = "utility"
	TypeControllerTag = "controllerTag"
)

// Preset is a named set of rules and type suffixes. Lookups fall back to Parent.
type Preset struct {
	Name     string            `json:"name" yaml:"name"`
	Parent   string            `json:"parent,omitempty" yaml:"parent,omitempty"`
	Rules    map[string]string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Suffixes map[string]string `json:"suffixes,omitempty" yaml:"suffixes,omitempty"`
}

// DefaultPreset returns the built-in preset.
func DefaultPreset() *Preset {
	return &Preset{
		Name: DefaultPresetName,
		Rules: map[string]string{
			RuleComponentName: "{componentName}_{side}",
			RuleObject:        "{componentName}_{side}_{id}_{type}",
			RuleLayerRoot:     "{componentName}_{side}_{layerType}_{type}",
			RuleSettings:      "{componentName}_{side}_{section}_{type}",
			RuleContainer:     "{componentName}_{side}_{type}",
			RuleRigName:       "{rigName}_{type}",
			RuleRigLayer:      "{rigName}_{layerType}_{type}",
			RuleSpaceSwitch:   "{componentName}_{side}_{id}_{label}_{type}",
		},
		Suffixes: map[string]string{
			TypeGuide:         "guid",
			TypeJoint:         "jnt",
			TypeControl:       "anim",
			TypeInput:         "in",
			TypeOutput:        "out",
			TypeSrt:           "srt",
			TypeHrc:           "hrc",
			TypeSettings:      "settings",
			TypeAnnotation:    "ann",
			TypeContainer:     "asset",
			TypeMeta:          "meta",
			TypeConstraint:    "cns",
			TypeLocator:       "loc",
			TypeShape:         "shape",
			TypeUtility:       "util",
			TypeControllerTag: "tag",
		},
	}
}

var tokenPattern = regexp.MustCompile(`\{([A-Za-z0-9]+)\}`)

// Manager holds the known presets. It is safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	presets map[string]*Preset
}

// NewManager returns a manager seeded with the default preset.
func NewManager() *Manager {
	m := &Manager{presets: make(map[string]*Preset)}
	m.Register(DefaultPreset())
	return m
}

// Register adds or replaces a preset.
func (m *Manager) Register(p *Preset) {
	m.mu.Lock()
	m.presets[p.Name] = p
	m.mu.Unlock()
}

func (m *Manager) Preset(name string) (*Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return p, nil
}

// Presets returns the registered preset names, sorted.
func (m *Manager) Presets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.presets))
}

// LoadYAML parses one preset or a list of presets and registers them.
func (m *Manager) LoadYAML(data []byte) ([]*Preset, error) {
	var many []*Preset
	if err := yaml.Unmarshal(data, &many); err != nil {
		var one Preset
		if err := yaml.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("naming preset: %w", err)
		}
		many = []*Preset{&one}
	}
	for _, p := range many {
		if p.Name == "" {
			return nil, fmt.Errorf("naming preset: missing name")
		}
		if p.Parent == "" && p.Name != DefaultPresetName {
			p.Parent = DefaultPresetName
		}
		m.Register(p)
	}
	return many, nil
}

// chain returns the preset and its ancestors, nearest first.
func (m *Manager) chain(name string) ([]*Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Preset
	seen := make(map[string]bool)
	for cur := name; cur != ""; {
		if seen[cur] {
			return nil, fmt.Errorf("%w: %s", ErrPresetCycle, name)
		}
		seen[cur] = true
		p, ok := m.presets[cur]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPresetNotFound, cur)
		}
		out = append(out, p)
		cur = p.Parent
	}
	return out, nil
}

// Rule returns the template for rule in preset, following inheritance.
func (m *Manager) Rule(preset, rule string) (string, error) {
	chain, err := m.chain(preset)
	if err != nil {
		return "", err
	}
	for _, p := range chain {
		if tpl, ok := p.Rules[rule]; ok {
			return tpl, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrRuleNotFound, rule, preset)
}

// Suffix returns the suffix for a type token, or the token itself when unknown.
func (m *Manager) Suffix(preset, typ string) string {
	chain, err := m.chain(preset)
	if err != nil {
		return typ
	}
	for _, p := range chain {
		if s, ok := p.Suffixes[typ]; ok {
			return s
		}
	}
	return typ
}

// Resolve expands rule with tokens. The "type" token is translated through the
// preset suffixes. Empty tokens collapse together with their separator.
func (m *Manager) Resolve(preset, rule string, tokens map[string]string) (string, error) {
	tpl, err := m.Rule(preset, rule)
	if err != nil {
		return "", err
	}
	values := maps.Clone(tokens)
	if values == nil {
		values = make(map[string]string)
	}
	if typ, ok := values["type"]; ok {
		values["type"] = m.Suffix(preset, typ)
	}
	return Expand(tpl, values), nil
}

// Expand substitutes {token} placeholders and tidies separators.
func Expand(tpl string, tokens map[string]string) string {
	out := tokenPattern.ReplaceAllStringFunc(tpl, func(s string) string {
		return tokens[s[1:len(s)-1]]
	})
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// Tokens lists the placeholders used in a template, in order of appearance.
func Tokens(tpl string) []string {
	var out []string
	for _, m := range tokenPattern.FindAllStringSubmatch(tpl, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

// Namer binds a Manager to one preset.
type Namer struct {
	manager *Manager
	preset  string
}

func (m *Manager) Namer(preset string) Namer {
	if preset == "" {
		preset = DefaultPresetName
	}
	return Namer{manager: m, preset: preset}
}

func (n Namer) Preset() string { return n.preset }

// Resolve expands rule, falling back to the default preset when the bound preset
// cannot resolve it.
func (n Namer) Resolve(rule string, tokens map[string]string) string {
	if n.manager == nil {
		n.manager = NewManager()
	}
	name, err := n.manager.Resolve(n.preset, rule, tokens)
	if err == nil {
		return name
	}
	if name, err = n.manager.Resolve(DefaultPresetName, rule, tokens); err == nil {
		return name
	}
	return Expand("{componentName}_{side}_{id}_{type}", tokens)
}

// Object names a node owned by a component.
func (n Namer) Object(component, side, id, typ string) string {
	return n.Resolve(RuleObject, map[string]string{
		"componentName": component,
		"side":          side,
		"id":            id,
		"type":          typ,
	})
}
