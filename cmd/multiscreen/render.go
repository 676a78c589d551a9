package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
)

var renderEval string

var renderCmd = &cobra.Command{
	Use:   "render <screen>",
	Short: "Enforce a screen, run under it, and restore",
	Long: `Enforce a screen: snapshot the document-level values, apply the screen's
variables over them, then restore the snapshot. With --eval, the given
pull expression runs while the screen is enforced and its value is
printed; without it, the enforced document values are printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		controller := session.Controller()

		if renderEval != "" {
			value, err := multiscreen.EnforceResult(cmd.Context(), controller, args[0],
				func(context.Context) (string, error) {
					return session.EvalPullActive(renderEval)
				})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ValueStyle.Render(value))
			return nil
		}

		return controller.Enforce(cmd.Context(), args[0], func(context.Context) error {
			values := session.Host().DocumentValues(controller.EnforcedKeys()...)
			keys := make([]string, 0, len(values))
			for key := range values {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, ValueStyle.Render(values[key]))
			}
			return nil
		})
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderEval, "eval", "", "pull expression to evaluate while enforced")
}
