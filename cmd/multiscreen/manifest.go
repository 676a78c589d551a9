package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
	"github.com/georgeantonopoulos/Nuke/pkg/manifest"
)

var (
	exportOut     string
	exportProject string
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Seed from or export to a YAML show manifest",
}

var manifestApplyCmd = &cobra.Command{
	Use:   "apply <manifest.yaml>",
	Short: "Apply a manifest onto the document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		m, err := manifest.ParseFile(args[0])
		if err != nil {
			return err
		}

		// Manifest bindings address the live node graph; the memory host
		// stands in for it here.
		if host, ok := session.Host().(*multiscreen.MemoryHost); ok {
			for _, screen := range m.Screens {
				for _, binding := range screen.Bindings {
					host.AddTarget(binding.Target)
				}
			}
		}

		report, err := m.Apply(session)
		if err != nil {
			return err
		}
		for _, warning := range report.Warnings {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("warning: ")+warning.Error())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%d screens, %d vars, %d bindings\n",
			SuccessStyle.Render("applied "), report.ScreensAdded, report.VarsSet, report.BindingsMade)
		return saveSession(session)
	},
}

var manifestExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the document as a manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		m, err := manifest.Export(session, exportProject)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return m.Encode(out)
	},
}

func init() {
	manifestExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to file instead of stdout")
	manifestExportCmd.Flags().StringVar(&exportProject, "project", "", "project name recorded in the manifest")

	manifestCmd.AddCommand(manifestApplyCmd)
	manifestCmd.AddCommand(manifestExportCmd)
}
