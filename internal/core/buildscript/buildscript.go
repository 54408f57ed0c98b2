// Package buildscript runs user scripts around the rig build stages. Scripts
// register handlers for named hooks; a Dispatcher publishes the hooks on the
// event bus, one topic per rig, so handlers run synchronously in the order the
// scripts were attached.
package buildscript

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/events/bus"
	"github.com/zeusync/hive/internal/core/observability/log"
)

// Hook names a point of the build where scripts run.
type Hook string

const (
	PreGuideBuild        Hook = "preGuideBuild"
	PostGuideBuild       Hook = "postGuideBuild"
	PreDeformBuild       Hook = "preDeformBuild"
	PostDeformBuild      Hook = "postDeformBuild"
	PreRigBuild          Hook = "preRigBuild"
	PostRigBuild         Hook = "postRigBuild"
	PostPolishBuild      Hook = "postPolishBuild"
	PreDeleteGuideLayer  Hook = "preDeleteGuideLayer"
	PreDeleteDeformLayer Hook = "preDeleteDeformLayer"
	PreDeleteRigLayer    Hook = "preDeleteRigLayer"
	PreDeleteComponent   Hook = "preDeleteComponent"
	PreDeleteRig         Hook = "preDeleteRig"
)

// Hooks lists every hook in build order.
var Hooks = []Hook{
	PreGuideBuild, PostGuideBuild,
	PreDeformBuild, PostDeformBuild,
	PreRigBuild, PostRigBuild,
	PostPolishBuild,
	PreDeleteGuideLayer, PreDeleteDeformLayer, PreDeleteRigLayer,
	PreDeleteComponent, PreDeleteRig,
}

var (
	ErrUnknownHook   = errors.New("unknown build script hook")
	ErrScriptExists  = errors.New("build script already attached")
	ErrInvalidScript = errors.New("invalid build script")
)

// Properties are the persisted settings of one script on one rig.
type Properties map[string]any

// Context is what a hook handler receives.
type Context struct {
	Hook Hook
	Rig  string
	// Component is the component a per component hook runs for.
	Component *component.Component
	// Components is the batch a build hook runs around.
	Components []*component.Component
	// Properties are the script defaults overlaid with the rig's values.
	Properties Properties
}

// Handler runs one hook.
type Handler func(ctx *Context) error

// Script is a build script type.
type Script interface {
	ID() string
	// DefaultProperties declares the properties and their default values.
	DefaultProperties() Properties
	// Handlers maps the hooks the script handles to their handlers.
	Handlers() map[Hook]Handler
}

// Func is a Script assembled from plain functions.
type Func struct {
	Name     string
	Defaults Properties
	OnHook   map[Hook]Handler
}

var _ Script = (*Func)(nil)

func (f *Func) ID() string                    { return f.Name }
func (f *Func) DefaultProperties() Properties { return f.Defaults }
func (f *Func) Handlers() map[Hook]Handler    { return f.OnHook }

// payload is the event data the dispatcher publishes.
type payload struct {
	component  *component.Component
	components []*component.Component
}

// Dispatcher attaches scripts to one rig and fires its hooks.
type Dispatcher struct {
	bus    bus.EventBus
	logger log.Log
	rig    string
	topic  string

	scripts []string
	subs    []bus.Subscription
}

// NewDispatcher returns a dispatcher publishing on b for the rig named rig.
func NewDispatcher(b bus.EventBus, logger log.Log, rig string) *Dispatcher {
	d := &Dispatcher{
		bus:    b,
		logger: logger.With(log.Rig(rig)),
		rig:    rig,
		topic:  "buildscript/" + rig,
	}
	_ = b.CreateTopic(d.topic, bus.TopicConfig{StopOnError: true})
	b.AddObserver(d)
	return d
}

// Attach subscribes the handlers of s. props overlay the script defaults and
// are copied, so later changes to the map have no effect.
func (d *Dispatcher) Attach(s Script, props Properties) error {
	if s == nil || s.ID() == "" {
		return ErrInvalidScript
	}
	if slices.Contains(d.scripts, s.ID()) {
		return fmt.Errorf("%w: %s", ErrScriptExists, s.ID())
	}
	merged := maps.Clone(s.DefaultProperties())
	if merged == nil {
		merged = make(Properties)
	}
	maps.Copy(merged, props)

	handlers := s.Handlers()
	for hook := range handlers {
		if !slices.Contains(Hooks, hook) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownHook, s.ID(), hook)
		}
	}
	id := s.ID()
	for _, hook := range Hooks {
		h, ok := handlers[hook]
		if !ok || h == nil {
			continue
		}
		sub, err := d.bus.SubscribeTopic(d.topic, string(hook), func(e bus.Event) error {
			p, _ := e.Data().(*payload)
			ctx := &Context{Hook: hook, Rig: d.rig, Properties: maps.Clone(merged)}
			if p != nil {
				ctx.Component, ctx.Components = p.component, p.components
			}
			if err := h(ctx); err != nil {
				return fmt.Errorf("build script %s %s: %w", id, hook, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		d.subs = append(d.subs, sub)
	}
	d.scripts = append(d.scripts, id)
	d.logger.Debug("build script attached", log.String("script", id), log.Int("hooks", len(handlers)))
	return nil
}

// Scripts returns the attached script ids in attach order.
func (d *Dispatcher) Scripts() []string { return slices.Clone(d.scripts) }

// Detach cancels every subscription and stops observing the bus.
func (d *Dispatcher) Detach() error {
	var errs []error
	for _, s := range d.subs {
		errs = append(errs, d.bus.Unsubscribe(s))
	}
	d.subs, d.scripts = nil, nil
	d.bus.RemoveObserver(d)
	return errors.Join(errs...)
}

// Fire runs a batch hook for comps.
func (d *Dispatcher) Fire(hook Hook, comps ...*component.Component) error {
	return d.bus.PublishToTopic(d.topic, bus.NewEvent(string(hook), d.rig, &payload{components: comps}, nil))
}

// FireFor runs a per component hook.
func (d *Dispatcher) FireFor(hook Hook, comp *component.Component) error {
	p := &payload{component: comp}
	if comp != nil {
		p.components = []*component.Component{comp}
	}
	return d.bus.PublishToTopic(d.topic, bus.NewEvent(string(hook), d.rig, p, nil))
}

// Scope fires pre and returns a function firing post. Either hook may be "".
// When pre fails, post is never fired.
func (d *Dispatcher) Scope(pre, post Hook, comps []*component.Component) (end func() error, err error) {
	if pre != "" {
		if err := d.Fire(pre, comps...); err != nil {
			return func() error { return nil }, err
		}
	}
	return func() error {
		if post == "" {
			return nil
		}
		return d.Fire(post, comps...)
	}, nil
}

func (d *Dispatcher) OnPublish(string, string, bus.Event) {}

func (d *Dispatcher) OnDelivered(topic, eventType string, handlers int, err error, elapsed time.Duration) {
	if topic != d.topic || handlers == 0 {
		return
	}
	if err != nil {
		d.logger.Error("build script hook failed", log.String("hook", eventType), log.Error(err))
		return
	}
	d.logger.Debug("build script hook", log.String("hook", eventType), log.Int("handlers", handlers), log.Duration("elapsed", elapsed))
}
