package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zeusync/hive/internal/core/definition"
	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/rig"
	"github.com/zeusync/hive/internal/injector"
)

// Stages the build command can stop at, in build order.
const (
	stageGuides = "guides"
	stageDeform = "deform"
	stageRig    = "rig"
	stagePolish = "polish"
)

var stages = []string{stageGuides, stageDeform, stageRig, stagePolish}

func buildCmd(opts *injector.Options) *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "build <blueprint.yaml>",
		Short: "Create a rig from a blueprint and build it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(stages, stage) {
				return fmt.Errorf("unknown stage %q, want one of %v", stage, stages)
			}
			app, done, err := initApp(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			b, err := rig.LoadBlueprint(args[0])
			if err != nil {
				return err
			}
			r, err := app.Factory.Apply(b)
			if err != nil {
				return err
			}
			if err := runStages(r, stage, app.Logger); err != nil {
				return err
			}
			return printDefinitions(cmd, r)
		},
	}
	cmd.Flags().StringVar(&stage, "stage", stageRig, "Last stage to build (guides, deform, rig, polish)")
	return cmd
}

// runStages builds every stage up to and including last. A polish that
// leaves some components unpolished is reported but not fatal.
func runStages(r *rig.Rig, last string, logger log.Log) error {
	var err error
	switch last {
	case stageGuides:
		err = r.BuildGuides()
	case stageDeform:
		err = r.BuildDeform()
	case stageRig:
		err = r.BuildRigs()
	case stagePolish:
		ok, perr := r.Polish()
		if perr != nil && ok {
			logger.Warn("polish finished with errors", log.Rig(r.FullName()), log.Error(perr))
			perr = nil
		}
		err = perr
	}
	return err
}

func printDefinitions(cmd *cobra.Command, r *rig.Rig) error {
	comps := r.Components()
	defs := make([]*definition.ComponentDefinition, 0, len(comps))
	for _, c := range comps {
		defs = append(defs, c.SerializeFromScene())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(defs)
}

func validateCmd(opts *injector.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <blueprint.yaml>",
		Short: "Check a blueprint against the registered component types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := initApp(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			b, err := rig.LoadBlueprint(args[0])
			if err != nil {
				return err
			}
			if err := b.Validate(app.Registry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d components ok\n", b.Name, len(b.Components))
			return nil
		},
	}
}
