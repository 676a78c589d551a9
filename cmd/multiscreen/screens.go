package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var screensCmd = &cobra.Command{
	Use:   "screens",
	Short: "Manage the ordered screen set",
}

var screensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List screens in registration order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}

		active, hasActive := session.Controller().ActiveScreen()
		screens := session.Registry().Screens()
		if len(screens) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("no screens"))
			return nil
		}
		for _, id := range screens {
			marker := "  "
			name := id
			if hasActive && id == active {
				marker = TitleStyle.Render("* ")
				name = TitleStyle.Render(id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, name)
		}
		return nil
	},
}

var screensAddCmd = &cobra.Command{
	Use:   "add <id>...",
	Short: "Register one or more screens",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := session.Registry().Add(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("added ")+id)
		}
		return saveSession(session)
	},
}

var screensRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a screen, its scope subtree, and degrade its bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		if err := session.Registry().Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("removed ")+args[0])
		return saveSession(session)
	},
}

var screensRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a screen, carrying scope, variables, and bindings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		if err := session.Registry().Rename(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s -> %s\n", SuccessStyle.Render("renamed "), args[0], args[1])
		return saveSession(session)
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Make a screen active and deliver its push bindings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		if err := session.Controller().Activate(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("active ")+args[0])
		return saveSession(session)
	},
}

func init() {
	screensCmd.AddCommand(screensListCmd)
	screensCmd.AddCommand(screensAddCmd)
	screensCmd.AddCommand(screensRemoveCmd)
	screensCmd.AddCommand(screensRenameCmd)
}
