package buildscript

import (
	"github.com/zeusync/hive/internal/core/component"
	"github.com/zeusync/hive/internal/core/observability/log"
)

// ReportID is the id the report script registers under.
const ReportID = "report"

// Report returns a script that logs every hook with the components it ran
// for. The "level" property picks the log level.
func Report(logger log.Log) Script {
	handle := func(ctx *Context) error {
		level, _ := ctx.Properties["level"].(string)
		logger.Log(log.ParseLevel(level), "build hook",
			log.Rig(ctx.Rig),
			log.String("hook", string(ctx.Hook)),
			log.Strings("components", componentTokens(ctx.Components)))
		return nil
	}
	hooks := make(map[Hook]Handler, len(Hooks))
	for _, h := range Hooks {
		hooks[h] = handle
	}
	return &Func{Name: ReportID, Defaults: Properties{"level": "info"}, OnHook: hooks}
}

func componentTokens(comps []*component.Component) []string {
	out := make([]string, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.Token())
	}
	return out
}
