package rig

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/exprutils"
	"github.com/zeusync/hive/internal/core/observability/log"
)

// Blueprint describes a rig to assemble: its configuration and the components
// with their parents. It is the document the command line builds from.
type Blueprint struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace,omitempty"`

	// Configuration is decoded over the factory defaults, so a blueprint only
	// lists what it changes.
	Configuration yaml.Node            `yaml:"configuration,omitempty"`
	Components    []ComponentBlueprint `yaml:"components"`
}

type ComponentBlueprint struct {
	Type   string `yaml:"type"`
	Name   string `yaml:"name,omitempty"`
	Side   string `yaml:"side,omitempty"`
	Parent string `yaml:"parent,omitempty"`
	// DriverGuide is the parent guide the component hangs from. Empty picks
	// the parent's default output.
	DriverGuide string `yaml:"driverGuide,omitempty"`
	// Guides overrides template guide positions by guide id.
	Guides map[string][]float64 `yaml:"guides,omitempty"`
}

// token is the name:side the component gets when created from template.
func (cb ComponentBlueprint) token(template *definition.ComponentDefinition) string {
	name, side := cb.Name, cb.Side
	if name == "" {
		name = template.Name
	}
	if side == "" {
		side = template.Side
	}
	if side == "" {
		side = definition.DefaultSide
	}
	return exprutils.ComponentToken(name, side)
}

func ParseBlueprint(data []byte) (*Blueprint, error) {
	var b Blueprint
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBlueprint, err)
	}
	return &b, nil
}

func LoadBlueprint(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBlueprint(data)
}

// ConfigurationOver decodes the blueprint configuration over base.
func (b *Blueprint) ConfigurationOver(base Configuration) (Configuration, error) {
	cfg := base
	if b.Configuration.Kind == 0 {
		return cfg, nil
	}
	if err := b.Configuration.Decode(&cfg); err != nil {
		return base, fmt.Errorf("%w: configuration: %w", ErrInvalidBlueprint, err)
	}
	return cfg, nil
}

// Validate checks the blueprint against the catalog: known types, unique
// tokens, resolvable parents and no parent cycle.
func (b *Blueprint) Validate(catalog Catalog) error {
	var errs []error
	if b.Name == "" {
		errs = append(errs, fmt.Errorf("%w: rig name is required", ErrInvalidBlueprint))
	}
	tokens := make(map[string]ComponentBlueprint, len(b.Components))
	var order []string
	for i, cb := range b.Components {
		template, err := catalog.Template(cb.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: component %d: %w", ErrInvalidBlueprint, i, err))
			continue
		}
		token := cb.token(template)
		if _, dup := tokens[token]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate component %s", ErrInvalidBlueprint, token))
			continue
		}
		for id := range cb.Guides {
			if template.GuideLayer.Node(id) == nil {
				errs = append(errs, fmt.Errorf("%w: %s has no guide %q", ErrInvalidBlueprint, token, id))
			}
		}
		tokens[token] = cb
		order = append(order, token)
	}
	for _, token := range order {
		if p := tokens[token].Parent; p != "" {
			if _, ok := tokens[p]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s parent %s is not in the blueprint", ErrInvalidBlueprint, token, p))
			}
		}
	}
	if _, cyclic := orderParentsFirst(order, func(t string) (string, bool) {
		p := tokens[t].Parent
		return p, p != ""
	}); len(cyclic) > 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrComponentCycle, cyclic))
	}
	return errors.Join(errs...)
}

// Apply creates the rig b describes, components parents first. Nothing is
// built; callers run the build passes they need.
func (f *Factory) Apply(b *Blueprint) (*Rig, error) {
	if err := b.Validate(f.catalog); err != nil {
		return nil, err
	}
	cfg, err := b.ConfigurationOver(f.Defaults)
	if err != nil {
		return nil, err
	}
	r, err := f.CreateWithConfiguration(b.Name, b.Namespace, cfg)
	if err != nil {
		return nil, err
	}

	byToken := make(map[string]ComponentBlueprint, len(b.Components))
	var order []string
	for _, cb := range b.Components {
		template, _ := f.catalog.Template(cb.Type)
		token := cb.token(template)
		byToken[token] = cb
		order = append(order, token)
	}
	order, _ = orderParentsFirst(order, func(t string) (string, bool) {
		p := byToken[t].Parent
		return p, p != ""
	})

	for _, token := range order {
		cb := byToken[token]
		c, err := r.createFromBlueprint(cb)
		if err != nil {
			return r, fmt.Errorf("%s: %w", token, err)
		}
		if cb.Parent == "" {
			continue
		}
		parent, err := r.componentByToken(cb.Parent)
		if err != nil {
			return r, err
		}
		if err := c.SetParent(parent, cb.DriverGuide); err != nil {
			return r, fmt.Errorf("%s: %w", token, err)
		}
	}
	r.logger.Info("blueprint applied", log.Int("components", len(order)), log.Strings("types", blueprintTypes(b)))
	return r, nil
}

func (r *Rig) createFromBlueprint(cb ComponentBlueprint) (*component.Component, error) {
	template, err := r.catalog.Template(cb.Type)
	if err != nil {
		return nil, err
	}
	name, side := cb.Name, cb.Side
	if name == "" {
		name = template.Name
	}
	if side == "" {
		side = template.Side
	}
	def := template.Duplicate(name, side)
	def.Type = cb.Type
	def.Parent = ""
	def.SetOriginal(template)
	for id, translate := range cb.Guides {
		if n := def.GuideLayer.Node(id); n != nil {
			n.Translate = slices.Clone(translate)
		}
	}
	return r.CreateComponentFromDefinition(def)
}

func blueprintTypes(b *Blueprint) []string {
	var types []string
	for _, cb := range b.Components {
		if !slices.Contains(types, cb.Type) {
			types = append(types, cb.Type)
		}
	}
	return types
}
