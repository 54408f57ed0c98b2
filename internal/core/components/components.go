// Package components registers the component types that ship with hive.
package components

import (
	"github.com/zeusync/hive/internal/core/components/fkchain"
	"github.com/zeusync/hive/internal/core/registry"
)

// Register adds every built-in component type to r. Template files found by
// r.Load may replace the templates but keep the behaviors.
func Register(r *registry.Registry) {
	r.RegisterComponentType(fkchain.Type, fkchain.Template(), fkchain.New)
}
