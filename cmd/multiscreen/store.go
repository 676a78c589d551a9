package main

import (
	"fmt"

	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
	"github.com/georgeantonopoulos/Nuke/pkg/docstore"
)

var (
	storeProject string
	storeETag    string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Push and pull documents through the shared document store",
	Long: `Push and pull documents through the store directory. Each document is
kept under <store-dir>/<project>/<name>.screens with an etag derived
from its content, so concurrent edits are detected instead of silently
overwritten.`,
}

func openStore() (*docstore.FileStore[multiscreen.Document], error) {
	return docstore.NewFileStore[multiscreen.Document](cfg.StoreDir)
}

var storePushCmd = &cobra.Command{
	Use:   "push <name>",
	Short: "Push the working document into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(newLogger())
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}

		manager := docstore.Manager[multiscreen.Document]{Store: store}
		ref := docstore.Ref{Project: storeProject, Name: args[0]}
		doc := multiscreen.SnapshotDocument(session)

		_, meta, err := manager.Mutate(cmd.Context(), ref, docstore.Meta{ETag: storeETag},
			func(stored *multiscreen.Document) error {
				*stored = doc
				return nil
			})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s/%s etag %s\n",
			SuccessStyle.Render("pushed "), storeProject, args[0], SubtitleStyle.Render(meta.ETag))
		return nil
	},
}

var storePullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Replace the working document with a stored one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		ref := docstore.Ref{Project: storeProject, Name: args[0]}
		doc, meta, ok, err := store.Load(cmd.Context(), ref)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s", multiscreen.ErrNotFound, storeProject, args[0])
		}

		logger := newLogger()
		host := multiscreen.NewMemoryHost()
		for _, binding := range doc.Bindings {
			if !binding.Dangling {
				host.AddTarget(binding.TargetRef)
			}
		}
		session := multiscreen.NewSession(host, multiscreen.WithLogger(logger), multiscreen.WithEngine(engine))
		report, err := multiscreen.ApplyDocument(session, doc)
		if err != nil {
			return err
		}
		for _, warning := range report.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("warning: ")+warning.Error())
		}
		if err := saveSession(session); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s/%s etag %s -> %s\n",
			SuccessStyle.Render("pulled "), storeProject, args[0], SubtitleStyle.Render(meta.ETag), docFile)
		return nil
	},
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents for the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		refs, err := store.List(cmd.Context(), storeProject)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("no documents"))
			return nil
		}
		for _, ref := range refs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", ref.Project, ref.Name)
		}
		return nil
	},
}

func init() {
	storeCmd.PersistentFlags().StringVar(&storeProject, "project", "default", "project the document belongs to")
	storePushCmd.Flags().StringVar(&storeETag, "etag", "", "expected etag of the stored document")

	storeCmd.AddCommand(storePushCmd)
	storeCmd.AddCommand(storePullCmd)
	storeCmd.AddCommand(storeListCmd)
}
