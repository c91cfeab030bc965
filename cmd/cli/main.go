package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	serverURL   string
	noAutoStart bool
	verbose     bool
	rootCmd     = &cobra.Command{
		Use:   "ytmd",
		Short: "ytmd - YouTube video and music downloader",
		Long: `Download YouTube videos as MP4 or audio as MP3 with yt-dlp and FFmpeg.

The download command runs in the foreground with a progress display. The submit, jobs,
status, cancel and stats commands talk to a running ytmd-server, starting it when needed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./configs/config.yaml or ~/.config/ytmd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL (default from config)")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statsCmd)
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if ee, ok := err.(*exitError); ok {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, ee.msg)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
