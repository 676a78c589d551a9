package main

import (
	"fmt"

	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
)

var docAsJSON bool

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Inspect the screens document",
}

var docShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the document in its embedded text form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		if docAsJSON {
			payload, err := multiscreen.SnapshotDocument(session).ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		}
		return multiscreen.EncodeDocument(session, cmd.OutOrStdout())
	},
}

var docVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the document's bindings against the host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		issues := session.Registry().Verify()
		if len(issues) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("all bindings live"))
			return nil
		}
		for _, issue := range issues {
			fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render("dangling ")+issue.Error())
		}
		return saveSession(session)
	},
}

func init() {
	docShowCmd.Flags().BoolVar(&docAsJSON, "json", false, "print as JSON instead of the embedded text form")

	docCmd.AddCommand(docShowCmd)
	docCmd.AddCommand(docVerifyCmd)
}
