package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "abusewatch",
		Short: "Classify toxicity and track topic mentions in collected reddit data",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(importCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(aggregateCmd())
	root.AddCommand(flaggedCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func importCmd() *cobra.Command {
	var (
		file      string
		format    string
		subreddit string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk load a collector dump into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(file, format, subreddit)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "dump file to import (required)")
	cmd.Flags().StringVar(&format, "format", "", "file format: jsonl or rss (default: by extension)")
	cmd.Flags().StringVar(&subreddit, "subreddit", "", "subreddit for records that carry none")
	cmd.MarkFlagRequired("file")
	return cmd
}

func classifyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score unclassified items for toxicity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "rescore items that already have a classification")
	return cmd
}

func aggregateCmd() *cobra.Command {
	var dictionary string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild daily keyword and category mention counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(dictionary)
		},
	}

	cmd.Flags().StringVar(&dictionary, "dictionary", "", "topic dictionary YAML (default: from config or builtin)")
	return cmd
}

func flaggedCmd() *cobra.Command {
	var (
		jsonOutput bool
		minScore   float64
		limit      int
		itemType   string
	)

	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "Show items scored as hate speech",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlagged(jsonOutput, minScore, limit, itemType)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().Float64Var(&minScore, "min-score", -1, "minimum hate score (default: from config)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max items to show")
	cmd.Flags().StringVar(&itemType, "type", "", "only posts or only comments")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with pipeline scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
