package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zeusync/hive/internal/core/observability/log"
	"github.com/zeusync/hive/internal/core/registry"
	"github.com/zeusync/hive/internal/injector"
)

func componentsCmd(opts *injector.Options) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "components",
		Short: "List the registered component types",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := initApp(cmd, opts)
			if err != nil {
				return err
			}
			defer done()

			if err := listComponents(cmd.OutOrStdout(), app.Registry); err != nil {
				return err
			}
			if !watch && !app.Config.Registry.Watch {
				return nil
			}

			w, err := registry.NewWatcher(app.Registry, app.Config.Registry.Debounce)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-w.Reloaded():
					if err != nil {
						app.Logger.Warn("registry reloaded with errors", log.Error(err))
					}
					if err := listComponents(cmd.OutOrStdout(), app.Registry); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and list again when templates change")
	return cmd
}

func listComponents(out io.Writer, r *registry.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tVERSION\tSOURCE")
	for _, name := range r.ComponentTypes() {
		t, err := r.ComponentType(name)
		if err != nil {
			return err
		}
		source := t.Path
		if source == "" {
			source = "builtin"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Template.Version, source)
	}
	return tw.Flush()
}
