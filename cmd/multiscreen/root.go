package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	multiscreen "github.com/georgeantonopoulos/Nuke"
	"github.com/georgeantonopoulos/Nuke/pkg/journal"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"

	cfg         Config
	docFile     string
	engine      string
	verbose     bool
	showJournal bool

	rootCmd = &cobra.Command{
		Use:   "multiscreen",
		Short: "Edit multi-screen workflow documents",
		Long: TitleStyle.Render("multiscreen") + SubtitleStyle.Render(" - screen scopes, variables, and bindings") + `

multiscreen manages the per-screen state of a node graph document:
an ordered set of screens, hierarchical variables resolved nearest
scope first, and host targets bound to screen variables.

Mutating commands load the document named by --file, apply the change,
and write the document back.`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&docFile, "file", "f", "", "screens document (default show.screens, see MULTISCREEN_FILE)")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "pull expression engine: expr, cel, or js")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&showJournal, "journal", false, "print lifecycle events as they happen")

	rootCmd.AddCommand(screensCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(varsCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(unbindCmd)
	rootCmd.AddCommand(bindingsCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(storeCmd)
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Execute runs the root command through fang for styled help and errors.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// initConfig resolves configuration, letting explicit flags win over file
// and environment values.
func initConfig() {
	loaded, err := Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("warning: ")+err.Error())
	}
	cfg = loaded

	if docFile == "" {
		docFile = cfg.File
	}
	if engine == "" {
		engine = cfg.Engine
	}
	if !verbose {
		verbose = cfg.Verbose
	}
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "multiscreen"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// newSession builds a session over a memory host seeded from the document
// on disk, when one exists.
func newSession(logger *log.Logger) (*multiscreen.Session, error) {
	opts := []multiscreen.SessionOption{
		multiscreen.WithLogger(logger),
		multiscreen.WithEngine(engine),
	}
	if showJournal {
		opts = append(opts, multiscreen.WithJournalHooks(journalPrinter(logger)))
	}

	host := multiscreen.NewMemoryHost()
	session := multiscreen.NewSession(host, opts...)

	doc, ok, err := readDocument()
	if err != nil {
		return nil, err
	}
	if !ok {
		return session, nil
	}

	// The memory host stands in for the real node graph, so targets the
	// document still considers live must exist before the load revalidates
	// bindings against the host.
	for _, binding := range doc.Bindings {
		if !binding.Dangling {
			host.AddTarget(binding.TargetRef)
		}
	}

	report, err := multiscreen.ApplyDocument(session, doc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", docFile, err)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("warning: ")+warning.Error())
	}
	return session, nil
}

func readDocument() (multiscreen.Document, bool, error) {
	f, err := os.Open(docFile)
	if os.IsNotExist(err) {
		return multiscreen.Document{}, false, nil
	}
	if err != nil {
		return multiscreen.Document{}, false, fmt.Errorf("open %s: %w", docFile, err)
	}
	defer f.Close()

	doc, err := multiscreen.DecodeDocument(f)
	if err != nil {
		return multiscreen.Document{}, false, fmt.Errorf("decode %s: %w", docFile, err)
	}
	return doc, true, nil
}

func saveSession(session *multiscreen.Session) error {
	f, err := os.Create(docFile)
	if err != nil {
		return fmt.Errorf("write %s: %w", docFile, err)
	}
	if err := multiscreen.EncodeDocument(session, f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", docFile, err)
	}
	return f.Close()
}

// journalPrinter surfaces lifecycle events on the logger as they happen.
func journalPrinter(logger *log.Logger) journal.Hook {
	return journal.HookFunc(func(_ context.Context, event journal.Event) error {
		logger.Info(event.Verb,
			"object", event.ObjectType+"/"+event.ObjectID,
			"screen", event.Screen,
			"path", event.Path,
		)
		return nil
	})
}
