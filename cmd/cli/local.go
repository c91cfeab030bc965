package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jphed/youtube-video-music-downloader/internal/app"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/format"
	"github.com/jphed/youtube-video-music-downloader/internal/infrastructure"
	"github.com/jphed/youtube-video-music-downloader/internal/toollocator"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show where yt-dlp and FFmpeg were found",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(config, false)
		if err != nil {
			return err
		}

		locator := toollocator.New(config.Tools, log)
		loc := locator.Locate()
		if loc.Found() {
			fmt.Printf("FFmpeg:  %s (%s)\n", loc.Dir, loc.Source)
			fmt.Printf("  ffmpeg:  %s\n", loc.Executable)
			fmt.Printf("  ffprobe: %s\n", loc.Probe)
		} else {
			fmt.Println("FFmpeg:  not found")
			fmt.Println("  Video falls back to progressive MP4 (720p max); MP3 conversion is unavailable.")
		}
		if verbose {
			fmt.Println("  Searched roots:")
			for _, root := range locator.Roots() {
				fmt.Printf("    %s\n", root)
			}
		}

		fetcher := infrastructure.NewYTDLPFetcher(config.Tools.YTDLPBinary, "", log, nil)
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		version, err := fetcher.Version(ctx)
		if err != nil {
			fmt.Printf("yt-dlp:  %v\n", err)
			return &exitError{code: 1}
		}
		fmt.Printf("yt-dlp:  %s (%s)\n", version, fetcher.Binary())
		return nil
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the quality choices",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Video (mp4):")
		for _, q := range format.VideoQualities() {
			fmt.Printf("  %s\n", q)
		}
		fmt.Println("Audio (mp3):")
		for _, q := range format.AudioQualities() {
			fmt.Printf("  %s\n", q)
		}
		fmt.Printf("Without FFmpeg, video is limited to single-file MP4 up to %dp.\n", format.ProgressiveCeiling)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showStats, _ := cmd.Flags().GetBool("stats")

		config, err := loadConfig()
		if err != nil {
			return err
		}
		if !config.History.Enabled {
			return fmt.Errorf("history is disabled (history.enabled)")
		}
		repo, err := infrastructure.NewSQLiteJobRepository(config.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer repo.Close()

		if showStats {
			stats, err := repo.GetStats()
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		}

		records, err := repo.FindRecent(limit)
		if err != nil {
			return err
		}
		printRecords(records)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show the job, error or download log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		dateStr, _ := cmd.Flags().GetString("date")
		query, _ := cmd.Flags().GetString("search")

		category := logger.CategoryJob
		if len(args) == 1 {
			category = logger.LogCategory(args[0])
		}
		if !logger.ValidCategory(category) {
			return fmt.Errorf("unknown category %q (valid: %s)", category, categoryList())
		}

		date := time.Now()
		if dateStr != "" {
			parsed, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("invalid date %q, use YYYY-MM-DD", dateStr)
			}
			date = parsed
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}

		reader := logger.NewLogReader(config.Download.LogsDir())
		var entries []logger.LogEntry
		if query != "" {
			entries, err = reader.SearchLogs(category, date, query, limit)
		} else {
			entries, err = reader.ReadLogs(category, date, limit)
		}
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Printf("No entries in %s\n", reader.GetLogPath(category, date))
			return nil
		}
		for _, e := range entries {
			printLogEntry(e)
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the download folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := app.EnsureOutputDir(config)
		if err != nil {
			return err
		}

		fmt.Println(dir)
		if err := openFolder(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open folder: %v\n", err)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path := filepath.Join(os.Getenv("HOME"), ".config", "ytmd", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of downloads to show")
	historyCmd.Flags().Bool("stats", false, "Show totals instead of the list")

	logsCmd.Flags().IntP("limit", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringP("date", "d", "", "Day to read, YYYY-MM-DD (default today)")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing this text")

	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// openFolder asks the desktop to show dir without waiting for it
func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

func printRecords(records []*domain.JobRecord) {
	if len(records) == 0 {
		fmt.Println("No downloads yet")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tURL\tTYPE\tQUALITY\tSTATE\tWHEN\tFILE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(r.ID, 8),
			truncate(r.URL, 40),
			r.Container,
			r.Quality,
			r.State,
			humanize.Time(r.CreatedAt),
			filepath.Base(r.SavedPath))
	}
	w.Flush()
}

func printStats(stats *domain.JobStats) {
	fmt.Println("Download Statistics:")
	fmt.Printf("  Total:     %d\n", stats.Total)
	fmt.Printf("  Running:   %d\n", stats.Running)
	fmt.Printf("  Succeeded: %d\n", stats.Succeeded)
	fmt.Printf("  Failed:    %d\n", stats.Failed)
	fmt.Printf("  Cancelled: %d\n", stats.Cancelled)
	fmt.Printf("  Degraded:  %d\n", stats.Degraded)
}

func printLogEntry(e logger.LogEntry) {
	if len(e.Fields) == 0 {
		fmt.Printf("%s %-5s %s\n", e.Timestamp, strings.ToUpper(e.Level), e.Message)
		return
	}
	fields, _ := json.Marshal(e.Fields)
	fmt.Printf("%s %-5s %s %s\n", e.Timestamp, strings.ToUpper(e.Level), e.Message, fields)
}

func categoryList() string {
	names := make([]string, 0, len(logger.Categories()))
	for _, c := range logger.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
