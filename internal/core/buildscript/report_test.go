package buildscript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/events/bus"
	"github.com/zeusync/hive/internal/core/observability/log"
)

type entry struct {
	level  log.Level
	msg    string
	fields map[string]any
}

// captureLog keeps every entry logged through it.
type captureLog struct{ entries *[]entry }

func (c captureLog) Log(level log.Level, msg string, fields ...log.Field) {
	e := entry{level: level, msg: msg, fields: map[string]any{}}
	for _, f := range fields {
		e.fields[f.Key] = f.Value
	}
	*c.entries = append(*c.entries, e)
}

func (c captureLog) Debug(msg string, fields ...log.Field) { c.Log(log.LevelDebug, msg, fields...) }
func (c captureLog) Info(msg string, fields ...log.Field)  { c.Log(log.LevelInfo, msg, fields...) }
func (c captureLog) Warn(msg string, fields ...log.Field)  { c.Log(log.LevelWarn, msg, fields...) }
func (c captureLog) Error(msg string, fields ...log.Field) { c.Log(log.LevelError, msg, fields...) }
func (c captureLog) Fatal(msg string, fields ...log.Field) { c.Log(log.LevelFatal, msg, fields...) }
func (c captureLog) With(...log.Field) log.Log              { return c }
func (c captureLog) WithContext(context.Context) log.Log    { return c }
func (c captureLog) SetLevel(log.Level)                     {}
func (c captureLog) GetLevel() log.Level                    { return log.LevelDebug }

func TestReportLogsEveryHook(t *testing.T) {
	var entries []entry
	d := NewDispatcher(bus.New(), log.Nop(), "body")
	require.NoError(t, d.Attach(Report(captureLog{&entries}), Properties{"level": "warn"}))
	assert.Equal(t, []string{ReportID}, d.Scripts())

	end, err := d.Scope(PreGuideBuild, PostGuideBuild, nil)
	require.NoError(t, err)
	require.NoError(t, end())
	require.NoError(t, d.FireFor(PreDeleteRig, nil))

	require.Len(t, entries, 3)
	for i, hook := range []Hook{PreGuideBuild, PostGuideBuild, PreDeleteRig} {
		assert.Equal(t, log.LevelWarn, entries[i].level)
		assert.Equal(t, "build hook", entries[i].msg)
		assert.Equal(t, string(hook), entries[i].fields["hook"])
		assert.Equal(t, "body", entries[i].fields["rig"])
		assert.Equal(t, []string{}, entries[i].fields["components"])
	}
}

func TestReportDefaultsToInfo(t *testing.T) {
	var entries []entry
	d := NewDispatcher(bus.New(), log.Nop(), "body")
	require.NoError(t, d.Attach(Report(captureLog{&entries}), nil))
	require.NoError(t, d.Fire(PostPolishBuild))
	require.Len(t, entries, 1)
	assert.Equal(t, log.LevelInfo, entries[0].level)
}
