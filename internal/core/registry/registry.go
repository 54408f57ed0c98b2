// Package registry is the catalog of everything a rig build looks up by name:
// component types with their template definitions and behaviors, build
// scripts and naming presets. Templates and presets are discovered under the
// configured search paths; behaviors and scripts are registered in code.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/naming"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/pkg/concurrent"
)

// loadLimit caps the number of template files read at once.
const loadLimit = 8

type (
	// BehaviorFactory returns a fresh behavior for one component.
	BehaviorFactory func() component.Behavior
	// ScriptFactory returns a fresh build script.
	ScriptFactory func() buildscript.Script
)

// ComponentType is one registered component type.
type ComponentType struct {
	Name     string
	Template *definition.ComponentDefinition
	// Path is the template file, "" for types registered in code.
	Path string
}

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	logger log.Log
	naming *naming.Manager

	paths     []string
	builtins  map[string]*ComponentType
	types     map[string]*ComponentType
	behaviors map[string]BehaviorFactory
	scripts   map[string]ScriptFactory
}

// New returns a registry searching paths for template and naming files.
// Nothing is read until Load.
func New(logger log.Log, paths ...string) *Registry {
	return &Registry{
		logger:    logger,
		naming:    naming.NewManager(),
		paths:     slices.Clone(paths),
		builtins:  make(map[string]*ComponentType),
		types:     make(map[string]*ComponentType),
		behaviors: make(map[string]BehaviorFactory),
		scripts:   make(map[string]ScriptFactory),
	}
}

// Registration

// RegisterComponentType registers a type defined in code. A template file
// declaring the same type replaces the template but keeps the behavior.
func (r *Registry) RegisterComponentType(name string, template *definition.ComponentDefinition, behavior BehaviorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if template.Type == "" {
		template.Type = name
	}
	t := &ComponentType{Name: name, Template: template}
	r.builtins[name] = t
	if existing, ok := r.types[name]; !ok || existing.Path == "" {
		r.types[name] = t
	}
	if behavior != nil {
		r.behaviors[name] = behavior
	}
}

// RegisterBehavior binds a behavior to a type whose template comes from a file.
func (r *Registry) RegisterBehavior(name string, behavior BehaviorFactory) {
	r.mu.Lock()
	r.behaviors[name] = behavior
	r.mu.Unlock()
}

func (r *Registry) RegisterBuildScript(id string, factory ScriptFactory) {
	r.mu.Lock()
	r.scripts[id] = factory
	r.mu.Unlock()
}

// AddSearchPath appends a directory searched by the next Load.
func (r *Registry) AddSearchPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.paths, path) {
		r.paths = append(r.paths, path)
	}
}

// Lookup

// ComponentType returns the type with name. The template is a copy the caller
// may modify.
func (r *Registry) ComponentType(name string) (*ComponentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponentType, name)
	}
	return &ComponentType{Name: t.Name, Template: t.Template.Clone(), Path: t.Path}, nil
}

// Template returns a copy of the template of the type name.
func (r *Registry) Template(name string) (*definition.ComponentDefinition, error) {
	t, err := r.ComponentType(name)
	if err != nil {
		return nil, err
	}
	return t.Template, nil
}

// ComponentTypes returns the registered type names, sorted.
func (r *Registry) ComponentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.types))
}

// NewBehavior returns the behavior of type name. Types without a registered
// behavior get the generic one.
func (r *Registry) NewBehavior(name string) component.Behavior {
	r.mu.RLock()
	f, ok := r.behaviors[name]
	r.mu.RUnlock()
	if !ok {
		return component.BaseBehavior{}
	}
	return f()
}

func (r *Registry) BuildScript(id string) (buildscript.Script, error) {
	r.mu.RLock()
	f, ok := r.scripts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBuildScript, id)
	}
	return f(), nil
}

func (r *Registry) BuildScripts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.scripts))
}

func (r *Registry) Naming() *naming.Manager { return r.naming }

func (r *Registry) SearchPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.paths)
}

// Loading

// Load discovers every template and naming file under the search paths and
// replaces the file based types. Broken files are skipped and reported in the
// returned error; everything else is still registered. Calling Load again
// forces a reload.
func (r *Registry) Load(ctx context.Context) error {
	paths := r.SearchPaths()
	templateFiles, err := discover(paths, templatePattern)
	if err != nil {
		return err
	}
	namingFiles, err := discover(paths, namingPattern)
	if err != nil {
		return err
	}

	defs, loadErrs := concurrent.Collect(ctx, templateFiles, loadLimit, loadTemplate)

	var errs []error
	types := make(map[string]*ComponentType, len(defs))
	for i, def := range defs {
		path := templateFiles[i]
		if loadErrs[i] != nil {
			r.logger.Warn("skipping component template", log.String("path", path), log.Error(loadErrs[i]))
			errs = append(errs, loadErrs[i])
			continue
		}
		if prev, ok := types[def.Type]; ok {
			r.logger.Warn("component type declared twice", log.String("type", def.Type), log.String("path", path), log.String("previous", prev.Path))
		}
		types[def.Type] = &ComponentType{Name: def.Type, Template: def, Path: path}
	}

	for _, path := range namingFiles {
		data, err := os.ReadFile(path)
		if err == nil {
			_, err = r.naming.LoadYAML(data)
		}
		if err != nil {
			r.logger.Warn("skipping naming preset", log.String("path", path), log.Error(err))
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidPreset, path, err))
		}
	}

	r.mu.Lock()
	for name, t := range r.builtins {
		if _, ok := types[name]; !ok {
			types[name] = t
		}
	}
	r.types = types
	r.mu.Unlock()

	r.logger.Debug("registry loaded",
		log.Int("templates", len(templateFiles)),
		log.Int("presets", len(namingFiles)),
		log.Int("types", len(types)))
	return errors.Join(errs...)
}

// loadTemplate reads one template file. The type defaults to the file name
// without its ".definition.<ext>" suffix.
func loadTemplate(_ context.Context, path string) (*definition.ComponentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTemplate, path, err)
	}
	def, err := definition.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTemplate, path, err)
	}
	if def.Type == "" {
		base := filepath.Base(path)
		def.Type = base[:strings.Index(base, templateSuffix)]
	}
	if def.Name == "" {
		def.Name = def.Type
	}
	if def.Side == "" {
		def.Side = definition.DefaultSide
	}
	if definition.NeedsMigration(def.Version) {
		def = definition.MigrateToLatestVersion(def, nil)
	}
	return def, nil
}
