package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/cmd/threatviz/internal"
)

var indexFlags struct {
	name string
	topK int
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the reference index",
	Long: `Build, inspect and query the local index of threat-modeling references
that grounds every analysis.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or rebuild the reference index",
	Long: `Ingest the configured PDFs, web pages, files and JSON sources, chunk and
embed them, and atomically replace the named index.

Examples:
  # Rebuild the default index
  threatviz index build

  # Build a second index under another name
  threatviz index build --name scratch`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the reference index",
	Args:  cobra.NoArgs,
	RunE:  runIndexStatus,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Query the reference index",
	Long: `Return the chunks nearest to QUERY, nearest first.

Examples:
  threatviz index search "STRIDE elevation of privilege"
  threatviz index search -k 10 mermaid flowchart syntax`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexSearch,
}

func init() {
	indexCmd.PersistentFlags().StringVar(&indexFlags.name, "name", "", "Index name (default: knowledge.index_name)")
	indexSearchCmd.Flags().IntVarP(&indexFlags.topK, "top-k", "k", 0, "Number of chunks to return (default: knowledge.top_k)")

	_ = indexCmd.RegisterFlagCompletionFunc("name", internal.CompleteIndexNames(func() string {
		if current.cfg == nil {
			return ""
		}
		return current.cfg.Knowledge.IndexDir
	}))

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	indexCmd.AddCommand(indexSearchCmd)
}

func indexName() string {
	if indexFlags.name != "" {
		return indexFlags.name
	}
	return current.cfg.Knowledge.IndexName
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg := current.cfg
	status := internal.NewStatus(cmd.ErrOrStderr(), current.flags.IsQuiet())

	store, err := newStore(cfg)
	if err != nil {
		return internal.WrapError(internal.ExitIndexError, "failed to open knowledge store", err)
	}

	sources := cfg.Knowledge.Corpus().Sources()
	name := indexName()
	status.Info("Building index %q from %d sources", name, len(sources))

	start := time.Now()
	ix, err := store.BuildAndPersist(cmd.Context(), name, sources)
	if err != nil {
		return err
	}
	return internal.NewPrinter(current.flags.GetOutputFormat(), cmd.OutOrStdout()).Built(internal.BuiltIndex{
		Name:     name,
		Elapsed:  time.Since(start),
		Manifest: ix.Manifest(),
	})
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	store, err := newStore(current.cfg)
	if err != nil {
		return internal.WrapError(internal.ExitIndexError, "failed to open knowledge store", err)
	}

	st, err := store.Status(indexName())
	if err != nil {
		return err
	}
	return internal.NewPrinter(current.flags.GetOutputFormat(), cmd.OutOrStdout()).IndexStatus(st)
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	cfg := current.cfg
	store, err := newStore(cfg)
	if err != nil {
		return internal.WrapError(internal.ExitIndexError, "failed to open knowledge store", err)
	}

	ix, err := store.Load(cmd.Context(), indexName())
	if err != nil {
		return err
	}

	k := indexFlags.topK
	if k <= 0 {
		k = cfg.Knowledge.TopK
	}
	hits, err := ix.Query(cmd.Context(), strings.Join(args, " "), k)
	if err != nil {
		return err
	}
	return internal.NewPrinter(current.flags.GetOutputFormat(), cmd.OutOrStdout()).Hits(hits)
}
