package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/config"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/logging"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/metrics"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/scheduler"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/internal/store"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/alert"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/classify"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/ingest"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/item"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/server"
	"github.com/Arda-Dinc04/Prototype-Reddit-NYU-Abuse/pkg/topics"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

func buildScorer(cfg *config.Config, log logging.Logger) classify.Scorer {
	if cfg.Classifier.Backend == "http" {
		scorer := classify.NewHTTPScorer(classify.HTTPScorerOpts{
			BaseURL: cfg.Classifier.HTTP.BaseURL,
			Model:   cfg.Classifier.HTTP.Model,
			APIKey:  cfg.Classifier.HTTP.APIKey,
			Timeout: cfg.Classifier.HTTP.ParseTimeout(),
			RPS:     cfg.Classifier.HTTP.RPS,
			Burst:   cfg.Classifier.HTTP.Burst,
		})
		log.WithFields(logging.Fields{"scorer": scorer.Name()}).Info("using remote scorer")
		return scorer
	}
	return classify.NewLexiconScorer(nil)
}

func buildEngine(cfg *config.Config, db store.Store, log logging.Logger) *classify.Engine {
	return classify.NewEngine(db, buildScorer(cfg, log), log, classify.EngineOpts{
		BatchSize: cfg.Classifier.BatchSize,
		Threshold: cfg.Classifier.Threshold,
	})
}

func buildDictionary(path string) (*topics.Dictionary, error) {
	if path == "" {
		return topics.Builtin(), nil
	}
	return topics.Load(path)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runImport(file, format, subreddit string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if format == "" {
		format = detectFormat(file)
	}

	im := ingest.NewImporter(db, log)
	var sum ingest.Summary
	switch ingest.Format(format) {
	case ingest.FormatJSONL:
		sum, err = im.ImportJSONL(context.Background(), file, subreddit)
	case ingest.FormatRSS:
		sum, err = im.ImportRSS(context.Background(), file, subreddit)
	default:
		return fmt.Errorf("unknown format %q (want jsonl or rss)", format)
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", file, err)
	}

	fmt.Printf("imported %d items (%d duplicates, %d skipped) from %s\n",
		sum.Imported, sum.Duplicates, sum.Skipped, file)
	return nil
}

func detectFormat(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".rss", ".xml", ".atom":
		return string(ingest.FormatRSS)
	}
	return string(ingest.FormatJSONL)
}

func runClassify(force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sum, err := buildEngine(cfg, db, log).Run(context.Background(), force)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	fmt.Printf("classified %d items (%d scored, %d degenerate, %d flagged, %d skipped, %d failed)\n",
		sum.Processed, sum.Scored, sum.Degenerate, sum.Flagged, sum.Skipped, sum.Failed)
	return nil
}

func runAggregate(dictionary string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if dictionary == "" {
		dictionary = cfg.Topics.Dictionary
	}
	dict, err := buildDictionary(dictionary)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sum, err := topics.NewAggregator(db, dict, log).Run(context.Background())
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	fmt.Printf("aggregated %d items: %d matched, %d term rows, %d category rows\n",
		sum.Items, sum.Matched, sum.TermRows, sum.CategoryRows)
	return nil
}

func runFlagged(jsonOutput bool, minScore float64, limit int, itemType string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if minScore < 0 {
		minScore = cfg.Classifier.Threshold
	}

	opts := store.ClassifiedOpts{MinHate: minScore, Limit: limit}
	if itemType != "" {
		typ, err := item.ParseType(itemType)
		if err != nil {
			return err
		}
		opts.Types = []item.Type{typ}
	}

	rows, err := db.ListClassified(context.Background(), opts)
	if err != nil {
		return fmt.Errorf("list flagged: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("no flagged items (try classifying first: abusewatch classify)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tTYPE\tSUBREDDIT\tAUTHOR\tTEXT")
	for _, row := range rows {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\n",
			row.HateSpeech, row.ItemType, row.Subreddit, row.Author,
			truncate(row.TextCleaned, 80))
	}
	return w.Flush()
}

func runStats() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	counts, err := db.Summary(context.Background(), cfg.Classifier.Threshold)
	if err != nil {
		return fmt.Errorf("summarize store: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "posts\t%d\n", counts.Posts)
	fmt.Fprintf(w, "comments\t%d\n", counts.Comments)
	fmt.Fprintf(w, "classified\t%d\n", counts.Classified)
	fmt.Fprintf(w, "flagged (>= %.2f)\t%d\n", cfg.Classifier.Threshold, counts.Flagged)
	fmt.Fprintf(w, "term mention rows\t%d\n", counts.TermRows)
	fmt.Fprintf(w, "category mention rows\t%d\n", counts.CategoryRows)
	fmt.Fprintf(w, "pipeline runs\t%d\n", counts.PipelineRuns)
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	metrics.StartServer(cfg.Metrics.Addr)

	return server.New(db, log, port, cfg.Classifier.Threshold).ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	dict, err := buildDictionary(cfg.Topics.Dictionary)
	if err != nil {
		return fmt.Errorf("load dictionary: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.StartServer(cfg.Metrics.Addr)

	sched := scheduler.New(db, buildEngine(cfg, db, log), topics.NewAggregator(db, dict, log),
		buildAlertManager(cfg), cfg.Schedule.ParseInterval(), cfg.Classifier.Threshold, log)

	// Pipeline in background, HTTP server in the foreground.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("scheduler stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
	}()

	return server.New(db, log, port, cfg.Classifier.Threshold).ListenAndServe()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
