package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
)

var traceFlag bool

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Read and write scoped variables",
}

var varsSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a variable by full dot path",
	Long: `Set a variable by full dot path. The path's leading segments name the
owning scope; a single segment addresses the root scope. Intermediate
scopes are created as needed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		scopePath, key, err := multiscreen.SplitPath(args[0])
		if err != nil {
			return err
		}
		if err := session.SetVariable(scopePath, key, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s = %s\n", SuccessStyle.Render("set "), args[0], ValueStyle.Render(args[1]))
		return saveSession(session)
	},
}

var varsGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Resolve a variable, walking ancestor scopes",
	Long: `Resolve a variable by full dot path. Resolution starts at the scope the
path names and walks toward the root, nearest scope winning. With
--trace, every visited scope is listed with its verdict.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		scopePath, key, err := multiscreen.SplitPath(args[0])
		if err != nil {
			return err
		}

		if !traceFlag {
			value, err := session.Resolver().Resolve(scopePath, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ValueStyle.Render(value))
			return nil
		}

		value, trace, err := session.Resolver().ResolveTrace(scopePath, key)
		missing := errors.Is(err, multiscreen.ErrNotFound)
		if err != nil && !missing {
			return err
		}
		for _, step := range trace.Steps {
			if step.Found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n",
					SuccessStyle.Render("hit "), step.Scope, ValueStyle.Render(step.Value))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SubtitleStyle.Render("miss"), step.Scope)
		}
		if missing {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ValueStyle.Render(value))
		return nil
	},
}

var varsUnsetCmd = &cobra.Command{
	Use:   "unset <path>",
	Short: "Remove a variable from the scope that holds it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		scopePath, key, err := multiscreen.SplitPath(args[0])
		if err != nil {
			return err
		}
		if err := session.RemoveVariable(scopePath, key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("unset ")+args[0])
		return saveSession(session)
	},
}

var varsListCmd = &cobra.Command{
	Use:   "list [scope]",
	Short: "List variables, everywhere or under one scope",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}

		store := session.Store()
		var scopes []string
		if len(args) == 1 {
			prefix := args[0]
			for _, path := range store.ScopePaths() {
				if path == prefix || (len(path) > len(prefix) && path[:len(prefix)+1] == prefix+".") {
					scopes = append(scopes, path)
				}
			}
			if len(scopes) == 0 {
				return fmt.Errorf("%w: scope %q", multiscreen.ErrNotFound, prefix)
			}
		} else {
			scopes = store.ScopePaths()
		}

		for _, scopePath := range scopes {
			vars, err := store.Variables(scopePath)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(vars))
			for key := range vars {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				full := key
				if scopePath != multiscreen.RootScopeName {
					full = scopePath + "." + key
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", full, ValueStyle.Render(vars[key]))
			}
		}
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <scope> <expression>",
	Short: "Evaluate a pull expression under a scope",
	Long: `Evaluate a pull expression as if a host target under the given scope
carried it. The expression sees gsv() plus the scope's effective
variables.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		value, err := session.EvalPull(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n", value)
		return nil
	},
}

func init() {
	varsGetCmd.Flags().BoolVar(&traceFlag, "trace", false, "show every scope the resolution visited")

	varsCmd.AddCommand(varsSetCmd)
	varsCmd.AddCommand(varsGetCmd)
	varsCmd.AddCommand(varsUnsetCmd)
	varsCmd.AddCommand(varsListCmd)
}
