package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JohnDeved/myrient-filter/internal/client"
	"github.com/JohnDeved/myrient-filter/internal/config"
	"github.com/JohnDeved/myrient-filter/internal/downloader"
	"github.com/JohnDeved/myrient-filter/internal/index"
	"github.com/JohnDeved/myrient-filter/internal/lister"
	"github.com/JohnDeved/myrient-filter/internal/tui"
	"github.com/JohnDeved/myrient-filter/internal/util"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "myrient-filter",
		Short: "Select and download ROM releases from Myrient",
		Long: `myrient-filter lists the systems of a Myrient collection, selects releases
by region, tag and revision, and downloads the selection.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().String("loglevel", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("base-url", "", "Root URL of the file index")
	rootCmd.PersistentFlags().String("collection", "", "Collection systems are listed under (e.g. 'No-Intro')")

	dirsCmd := &cobra.Command{
		Use:   "dirs [path]",
		Short: "List the sub-directories of a path (default: the collection)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDirs,
	}
	dirsCmd.Flags().Bool("json", false, "Output JSON")

	listCmd := &cobra.Command{
		Use:   "list <system>",
		Short: "List the releases of a system selected by the filter policy",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	listCmd.Flags().String("format", "text", "Output format: text, json or yaml")
	listCmd.Flags().Bool("offline", false, "Read the listing from the local index")
	addPolicyFlags(listCmd.Flags())

	downloadCmd := &cobra.Command{
		Use:   "download <system>",
		Short: "Select the releases of a system and download them",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}
	downloadCmd.Flags().StringP("output", "o", "", "Output directory")
	downloadCmd.Flags().Bool("extract", true, "Extract zip archives after download")
	downloadCmd.Flags().Bool("plain", false, "Log progress instead of showing the progress view")
	downloadCmd.Flags().Bool("dry-run", false, "Print the selection without downloading")
	downloadCmd.Flags().Bool("offline", false, "Read the listing from the local index")
	addPolicyFlags(downloadCmd.Flags())

	indexCmd := &cobra.Command{
		Use:   "index [system...]",
		Short: "Crawl the collection into the local index",
		RunE:  runIndex,
	}
	indexCmd.Flags().Bool("force", false, "Re-crawl systems that are not stale")
	indexCmd.Flags().Int("workers", 4, "Number of systems to crawl in parallel")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the local index",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().String("in", "", "Only search one collection")
	searchCmd.Flags().Int("limit", 50, "Maximum number of results")
	searchCmd.Flags().Bool("json", false, "Output JSON")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE:  runStats,
	}
	statsCmd.Flags().Bool("json", false, "Output JSON")

	rootCmd.AddCommand(dirsCmd, listCmd, downloadCmd, indexCmd, searchCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPolicyFlags(fs *pflag.FlagSet) {
	fs.Bool("region-limit", false, "Only keep releases tagged with --region or World")
	fs.String("region", "", "Region to keep with --region-limit (e.g. USA)")
	fs.Bool("smart-filters", false, "Drop demos, betas, prototypes and other non-retail releases")
	fs.StringSlice("exclude", nil, "Drop releases whose name contains any of these patterns")
	fs.Bool("latest", false, "Keep only the latest revision of each title")
}

// loadConfig reads the config and applies the log level. --loglevel wins
// over the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if f := cmd.Flags().Lookup("loglevel"); f != nil && f.Changed {
		level = f.Value.String()
	}
	if err := util.SetLogLevel(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.BaseURL, cfg.RequestsPerSecond, cfg.RetryMax, util.Log)
}

// openSource returns the live index, or the local database when offline.
func openSource(cfg *config.Config, offline bool) (lister.Source, func(), error) {
	if !offline {
		return newClient(cfg), func() {}, nil
	}
	db, err := index.OpenDB(config.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, func() { db.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runDirs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.Collection
	if len(args) > 0 {
		path = args[0]
	}

	ctx, cancel := signalContext()
	defer cancel()

	l := lister.New(newClient(cfg), cfg.Policy(), util.Log)
	dirs, err := l.ListDirectories(ctx, path)
	if err != nil {
		return err
	}

	jsonMode, _ := cmd.Flags().GetBool("json")
	if jsonMode {
		out := struct {
			Path        string   `json:"path"`
			Directories []string `json:"directories"`
		}{
			Path:        path,
			Directories: dirs,
		}
		if out.Directories == nil {
			out.Directories = []string{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, d := range dirs {
		fmt.Println(d)
	}
	return nil
}

// selectReleases lists a system and applies the configured policy.
func selectReleases(ctx context.Context, cmd *cobra.Command, cfg *config.Config, system string) (manifest, error) {
	offline, _ := cmd.Flags().GetBool("offline")
	src, closeSrc, err := openSource(cfg, offline)
	if err != nil {
		return manifest{}, err
	}
	defer closeSrc()

	l := lister.New(src, cfg.Policy(), util.Log)
	releases, err := l.ListReleases(ctx, cfg.Collection, system)
	if errors.Is(err, index.ErrNotIndexed) {
		return manifest{}, fmt.Errorf("%w: run 'myrient-filter index %q' first", err, system)
	}
	if err != nil {
		return manifest{}, err
	}
	return newManifest(cfg.Collection, system, l.Policy(), releases), nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	ctx, cancel := signalContext()
	defer cancel()

	m, err := selectReleases(ctx, cmd, cfg, args[0])
	if err != nil {
		return err
	}
	return writeManifest(os.Stdout, format, m)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	m, err := selectReleases(ctx, cmd, cfg, args[0])
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		return writeManifest(os.Stdout, "text", m)
	}
	if len(m.Releases) == 0 {
		fmt.Fprintln(os.Stderr, "No releases selected.")
		return nil
	}

	dir, err := homedir.Expand(cfg.DownloadDir)
	if err != nil {
		return fmt.Errorf("resolving download directory: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Downloading %d releases to %s\n", len(m.Releases), dir)

	dm := downloader.NewManager(newClient(cfg), dir, cfg.Extract, util.Log)

	plain, _ := cmd.Flags().GetBool("plain")
	var items []*downloader.Item
	if plain || !isInteractiveTerminal() {
		dm.Enqueue(m.Releases)
		err = dm.Run(ctx)
		items = dm.Items()
	} else {
		// Log lines would tear the progress view.
		util.Log.SetOutput(io.Discard)
		items, err = tui.RunDownloads(dm, m.Releases)
		util.Log.SetOutput(os.Stderr)
	}

	printSummary(os.Stderr, items)
	if err != nil {
		return err
	}
	if failed := dm.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, it := range failed {
			names = append(names, it.Name)
		}
		return fmt.Errorf("%d downloads failed: %s", len(failed), strings.Join(names, ", "))
	}
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := index.OpenDB(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	force, _ := cmd.Flags().GetBool("force")
	workers, _ := cmd.Flags().GetInt("workers")

	ctx, cancel := signalContext()
	defer cancel()

	crawler := index.NewCrawler(newClient(cfg), db, cfg.IndexStaleDays, util.Log)
	crawler.SetForce(force)
	crawler.SetWorkers(workers)
	crawler.SetProgressCallback(func(p index.CrawlProgress) {
		fmt.Fprintf(os.Stderr, "\r  Crawling: %s  [systems: %d  skipped: %d  files: %d  errors: %d]",
			util.TruncatePath(p.CurrentSystem, 50), p.Systems, p.Skipped, p.FilesFound, p.Errors)
	})

	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "Indexing %d systems of %s\n", len(args), cfg.Collection)
	} else {
		fmt.Fprintf(os.Stderr, "Indexing collection: %s\n", cfg.Collection)
	}
	if err := crawler.CrawlCollection(ctx, cfg.Collection, args); err != nil {
		return err
	}

	p := crawler.Progress()
	fmt.Fprintf(os.Stderr, "\n\nDone! Indexed %d systems, %d files (%d skipped, %d errors)\n",
		p.Systems, p.FilesFound, p.Skipped, p.Errors)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	query := strings.Join(args, " ")

	db, err := index.OpenDB(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	collection, _ := cmd.Flags().GetString("in")
	limit, _ := cmd.Flags().GetInt("limit")

	results, err := db.Search(cmd.Context(), query, collection, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	jsonMode, _ := cmd.Flags().GetBool("json")
	if jsonMode {
		out := struct {
			Query      string               `json:"query"`
			Collection string               `json:"collection,omitempty"`
			Count      int                  `json:"count"`
			Results    []index.SearchResult `json:"results"`
		}{
			Query:      query,
			Collection: collection,
			Count:      len(results),
			Results:    results,
		}
		if out.Results == nil {
			out.Results = []index.SearchResult{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(results) == 0 {
		fmt.Println("No results found. Have you run 'myrient-filter index' first?")
		return nil
	}

	fmt.Printf("Found %d results for %q:\n\n", len(results), query)
	for _, r := range results {
		fmt.Printf("  %s\n", r.Name)
		fmt.Printf("    %s/%s  %s\n", r.Collection, r.System, r.Size)
		fmt.Printf("    %s\n\n", r.URL)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	db, err := index.OpenDB(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	stats, err := db.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	jsonMode, _ := cmd.Flags().GetBool("json")
	if jsonMode {
		out := struct {
			index.Stats
			Database string `json:"database"`
		}{
			Stats:    stats,
			Database: config.DBPath(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Index Statistics:\n")
	fmt.Printf("  Collections: %d\n", stats.Collections)
	fmt.Printf("  Systems:     %d\n", stats.Systems)
	fmt.Printf("  Files:       %d\n", stats.Files)
	fmt.Printf("  Database:    %s\n", config.DBPath())
	return nil
}

func isInteractiveTerminal() bool {
	inInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	outInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (inInfo.Mode()&os.ModeCharDevice) != 0 && (outInfo.Mode()&os.ModeCharDevice) != 0
}
