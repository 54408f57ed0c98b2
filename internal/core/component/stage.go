package component

import (
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/observability/metrics"
)

// runStage runs fn as one build stage. The object cache lives exactly as long
// as fn. A failure forces flag false and comes back as a *BuildError.
func (c *Component) runStage(stage Stage, flag string, building *bool, fn func() error) (err error) {
	if err := c.requireExists(); err != nil {
		return err
	}
	timer := metrics.Start(c.host.Metrics(), string(stage))
	logger := c.logger.With(log.Stage(string(stage)))
	logger.Debug("stage started")

	*building = true
	c.generateObjectCache()
	defer func() {
		*building = false
		c.clearObjectCache()
		timer.Done(err)
	}()

	if err := fn(); err != nil {
		if ferr := c.setFlag(flag, false); ferr != nil {
			logger.Warn("failed to reset state flag", log.String("flag", flag), log.Error(ferr))
		}
		logger.Error("stage failed", log.Error(err), log.Stack())
		return &BuildError{Stage: stage, Component: c.Token(), Err: err}
	}
	logger.Debug("stage finished")
	return nil
}

// skipStage records a stage that had nothing to do.
func (c *Component) skipStage(stage Stage) {
	metrics.Start(c.host.Metrics(), string(stage)).DoneWith(metrics.StatusSkipped)
	c.logger.Debug("stage skipped", log.Stage(string(stage)))
}
