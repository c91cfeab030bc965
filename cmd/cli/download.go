package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/tui"
)

const plainProgressInterval = time.Second

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download a video or its audio in the foreground",
	Example: `  ytmd download https://youtu.be/dQw4w9WgXcQ
  ytmd download -t audio -q 320k https://youtu.be/dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		containerName, _ := cmd.Flags().GetString("type")
		quality, _ := cmd.Flags().GetString("quality")
		plain, _ := cmd.Flags().GetBool("plain")

		plain = plain || !isTerminal(os.Stdout)

		s, err := newSession(!plain)
		if err != nil {
			return err
		}
		defer s.Close()

		req, err := buildRequest(args[0], containerName, quality, s.config)
		if err != nil {
			return &exitError{code: 2, msg: err.Error()}
		}

		var result domain.JobResult
		if plain {
			result, err = runPlain(s, req, os.Stdout)
		} else {
			result, err = tui.Run(s.orchestrator(), req, tui.Options{Verbose: verbose})
		}
		if err != nil {
			return err
		}
		return resultError(result)
	},
}

func init() {
	downloadCmd.Flags().StringP("type", "t", "", "Output type: video (mp4) or audio (mp3) (default from config)")
	downloadCmd.Flags().StringP("quality", "q", "", "Quality, e.g. best, 1080p, 720p, 320k, 192k, m4a (see 'ytmd formats')")
	downloadCmd.Flags().Bool("plain", false, "Print progress lines instead of the interactive display")
}

// buildRequest applies the configured defaults to the command-line values
func buildRequest(url, containerName, quality string, config *domain.Config) (domain.DownloadRequest, error) {
	if containerName == "" {
		containerName = config.Download.DefaultContainer
		if quality == "" {
			quality = config.Download.DefaultQuality
		}
	}
	container, err := domain.ParseContainer(containerName)
	if err != nil {
		return domain.DownloadRequest{}, err
	}
	if quality == "" {
		quality = "best"
		if container == domain.ContainerAudio {
			quality = "192k"
		}
	}
	req := domain.NewDownloadRequest(url, container, quality)
	if err := req.ValidateURL(); err != nil {
		return domain.DownloadRequest{}, err
	}
	return req, nil
}

// runPlain runs the job on this goroutine and prints line-oriented progress
func runPlain(s *session, req domain.DownloadRequest, w io.Writer) (domain.JobResult, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPlainPrinter(w, verbose)
	fmt.Fprintf(w, "Downloading %s [%s %s]\n", req.URL, req.Container, req.Quality)

	result, err := s.orchestrator().Run(ctx, req, p.print)
	if err != nil {
		return result, err
	}
	p.finish(result)
	return result, nil
}

// resultError maps a failed job to the process exit code
func resultError(result domain.JobResult) error {
	switch {
	case result.Success:
		return nil
	case result.Kind == domain.FailureInvalidInput:
		return &exitError{code: 2}
	case result.Kind == domain.FailureCancelled:
		return &exitError{code: 130}
	default:
		return &exitError{code: 1}
	}
}

// plainPrinter writes one line per log event and at most one progress line per interval
type plainPrinter struct {
	w         io.Writer
	verbose   bool
	lastPrint time.Time
	now       func() time.Time
}

func newPlainPrinter(w io.Writer, verbose bool) *plainPrinter {
	return &plainPrinter{w: w, verbose: verbose, now: time.Now}
}

func (p *plainPrinter) print(ev domain.ProgressEvent) {
	switch ev.Phase {
	case domain.PhaseDownloading:
		now := p.now()
		if now.Sub(p.lastPrint) < plainProgressInterval && ev.BytesDone != ev.BytesTotal {
			return
		}
		p.lastPrint = now
		fmt.Fprintf(p.w, "[download] %5.1f%%  %s\n", ev.Percent(), tui.Describe(ev))
	case domain.PhaseFinished:
		fmt.Fprintln(p.w, "Download complete. Processing...")
	case domain.PhaseLog:
		switch ev.Level {
		case domain.LevelDebug:
			if p.verbose {
				fmt.Fprintf(p.w, "[debug] %s\n", ev.Message)
			}
		case domain.LevelWarning:
			fmt.Fprintf(p.w, "WARNING: %s\n", ev.Message)
		case domain.LevelError:
			fmt.Fprintf(p.w, "ERROR: %s\n", ev.Message)
		}
	}
}

func (p *plainPrinter) finish(result domain.JobResult) {
	switch {
	case result.Success:
		fmt.Fprintf(p.w, "Done. Saved to: %s\n", result.SavedPath)
	case result.Kind == domain.FailureCancelled:
		fmt.Fprintln(p.w, "Download cancelled")
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
