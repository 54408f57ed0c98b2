//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"
)

// InitializeApp wires the configuration, logger, registry and rig factory.
func InitializeApp(ctx context.Context, opts Options) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
