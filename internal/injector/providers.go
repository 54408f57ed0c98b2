package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/hive/internal/core/buildscript"
	"github.com/zeusync/hive/internal/core/components"
	"github.com/zeusync/hive/internal/core/config"
	"github.com/zeusync/hive/internal/core/events/bus"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/observability/metrics"
	"github.com/zeusync/hive/internal/core/registry"
	"github.com/zeusync/hive/internal/core/rig"
	"github.com/zeusync/hive/internal/core/scene"
)

// Options are the command line overrides of the configuration.
type Options struct {
	// ConfigPath is an explicit config file. Empty uses the layered lookup only.
	ConfigPath string
	// LogLevel replaces log.level when set.
	LogLevel string
}

// App is everything a command needs.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Metrics  metrics.Recorder
	Registry *registry.Registry
	Graph    scene.Graph
	Factory  *rig.Factory
}

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideMetrics,
	ProvideRegistry,
	ProvideGraph,
	wire.Bind(new(scene.Graph), new(*scene.Memory)),
	ProvideBus,
	ProvideFactory,
	wire.Struct(new(App), "*"),
)

func ProvideConfig(opts Options) (*config.Config, error) {
	cfg, err := config.NewLoader(log.Provide()).Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func ProvideLogger(cfg *config.Config) *log.Logger {
	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.Development {
		return log.NewDevelopment(level)
	}
	return log.New(level)
}

func ProvideMetrics(cfg *config.Config) metrics.Recorder {
	if !cfg.Metrics.Enabled {
		return metrics.Nop()
	}
	return metrics.Provide()
}

// ProvideRegistry registers the built-in component types and scripts, then
// loads the templates under the configured paths. Broken template files are
// logged and skipped.
func ProvideRegistry(ctx context.Context, cfg *config.Config, logger *log.Logger) *registry.Registry {
	r := registry.New(logger, cfg.Registry.Paths...)
	components.Register(r)
	r.RegisterBuildScript(buildscript.ReportID, func() buildscript.Script {
		return buildscript.Report(logger)
	})
	if err := r.Load(ctx); err != nil {
		logger.Warn("registry loaded with errors", log.Error(err))
	}
	return r
}

func ProvideGraph() *scene.Memory { return scene.NewMemory() }

func ProvideBus() bus.EventBus { return bus.New() }

// ProvideFactory returns a rig factory whose new rigs start from the build
// section of cfg.
func ProvideFactory(g scene.Graph, r *registry.Registry, b bus.EventBus, logger *log.Logger, rec metrics.Recorder, cfg *config.Config) *rig.Factory {
	f := rig.NewFactory(g, r, b, logger, rec)
	defaults := f.Defaults
	defaults.NamingPreset = cfg.Naming.Preset
	defaults.BlackBox = cfg.Build.BlackBox
	defaults.DeleteStaticGuideNodes = cfg.Build.DeleteStaticGuideNodes
	if cfg.Build.AutoAlignGuides != nil {
		defaults.AutoAlignGuides = *cfg.Build.AutoAlignGuides
	}
	for _, id := range cfg.Build.Scripts {
		defaults = defaults.WithScript(id, nil)
	}
	f.Defaults = defaults
	return f
}
