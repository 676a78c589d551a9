package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
)

var (
	bindMode   string
	verifyFlag bool
)

var bindCmd = &cobra.Command{
	Use:   "bind <target> <screen> <key>",
	Short: "Bind a host target to a screen variable",
	Long: `Bind a host target to a screen variable. Pull bindings assign the
target an expression that reads the variable through the active scope;
push bindings write the resolved value into the target whenever the
active screen changes. Binding a target the document lists as dangling
repairs it in place.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		mode, err := multiscreen.ParseBindingMode(bindMode)
		if err != nil {
			return err
		}

		// The memory host stands in for the node graph, so the target is
		// declared before binding against it.
		if host, ok := session.Host().(*multiscreen.MemoryHost); ok {
			host.AddTarget(args[0])
		}

		binding, err := session.Registry().Bind(args[0], args[1], args[2], mode)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s %s.%s (%s)\n",
			SuccessStyle.Render("bound "), binding.ID, ValueStyle.Render(binding.TargetRef),
			binding.ScreenID, binding.Key, binding.Mode)
		return saveSession(session)
	},
}

var unbindCmd = &cobra.Command{
	Use:   "unbind <binding-id>",
	Short: "Remove a binding by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse binding id: %w", err)
		}
		if err := session.Registry().Unbind(id); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("unbound ")+args[0])
		return saveSession(session)
	},
}

var bindingsCmd = &cobra.Command{
	Use:   "bindings [screen]",
	Short: "List bindings, optionally for one screen",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}

		if verifyFlag {
			for _, issue := range session.Registry().Verify() {
				fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render("dangling ")+issue.Error())
			}
		}

		screen := ""
		if len(args) == 1 {
			screen = args[0]
		}
		bindings := session.Registry().Bindings(screen)
		if len(bindings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("no bindings"))
			return nil
		}
		for _, binding := range bindings {
			state := SuccessStyle.Render("live")
			if binding.Dangling {
				state = WarningStyle.Render("dangling")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s.%s  %s  %s\n",
				binding.ID, ValueStyle.Render(binding.TargetRef),
				binding.ScreenID, binding.Key, binding.Mode, state)
		}

		if verifyFlag {
			return saveSession(session)
		}
		return nil
	},
}

func init() {
	bindCmd.Flags().StringVar(&bindMode, "mode", "pull", "binding mode: pull or push")
	bindingsCmd.Flags().BoolVar(&verifyFlag, "verify", false, "sweep bindings against the host before listing")
}
