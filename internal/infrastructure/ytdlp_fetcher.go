package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

const (
	progressPrefix = "[progress]"
	savedPrefix    = "[saved]"

	progressTemplate = "download:" + progressPrefix +
		" %(progress.status)s %(progress.downloaded_bytes)s %(progress.total_bytes)s" +
		" %(progress.total_bytes_estimate)s %(progress.speed)s %(progress.eta)s"
	savedTemplate = "after_move:" + savedPrefix + " %(filepath)s"

	// waitDelay bounds how long Wait blocks on output held open by ffmpeg after yt-dlp exits
	waitDelay = 5 * time.Second
)

// transcoderMessages are the yt-dlp error texts that mean ffmpeg or ffprobe is unusable
var transcoderMessages = []string{
	"ffmpeg not found",
	"ffprobe not found",
	"ffprobe and ffmpeg not found",
	"ffprobe/avprobe and ffmpeg/avconv not found",
	"ffmpeg is not installed",
}

// YTDLPFetcher implements domain.Fetcher by running the yt-dlp executable
type YTDLPFetcher struct {
	binary      string
	logsDir     string
	logger      *zap.Logger
	eventLogger *logger.MultiLogger
}

// NewYTDLPFetcher creates a fetcher. When logsDir is set, the raw output of every run is
// appended to the dated download log.
func NewYTDLPFetcher(binary, logsDir string, zlog *zap.Logger, eventLogger *logger.MultiLogger) *YTDLPFetcher {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLPFetcher{
		binary:      binary,
		logsDir:     logsDir,
		logger:      zlog,
		eventLogger: eventLogger,
	}
}

// Binary returns the configured executable
func (f *YTDLPFetcher) Binary() string {
	return f.binary
}

// Version runs yt-dlp --version
func (f *YTDLPFetcher) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, f.binary, "--version").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrFetcherNotFound, f.binary)
		}
		return "", fmt.Errorf("failed to run %s --version: %w", f.binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// BuildArgs translates a job configuration into yt-dlp flags
func BuildArgs(cfg domain.JobConfig) []string {
	args := []string{
		"-f", cfg.Plan.Selector,
		"-o", cfg.OutputTemplate,
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", savedTemplate,
		"--no-simulate",
	}

	if cfg.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if cfg.Quiet {
		args = append(args, "--quiet")
	}
	if cfg.NoWarnings {
		args = append(args, "--no-warnings")
	}
	if cfg.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}

	if cfg.Plan.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", cfg.Plan.MergeOutputFormat)
	}

	if pp := cfg.Plan.PostProcessing; pp != nil {
		args = append(args,
			"-x",
			"--audio-format", pp.Codec,
			"--audio-quality", fmt.Sprintf("%dK", pp.BitrateKbps),
		)
		if len(pp.ExtraArgs) > 0 {
			args = append(args, "--postprocessor-args", "ExtractAudio:"+strings.Join(pp.ExtraArgs, " "))
		}
	}

	if cfg.Tools.Found() {
		args = append(args, "--ffmpeg-location", cfg.Tools.Dir)
	}

	return append(args, "--", cfg.URL)
}

// Fetch runs yt-dlp for one job. Output lines are turned into events and passed to sink
// one at a time. The returned path is the final file after post-processing.
func (f *YTDLPFetcher) Fetch(ctx context.Context, cfg domain.JobConfig, sink domain.ProgressSink) (string, error) {
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	args := BuildArgs(cfg)
	cmdLine := CommandLine(f.binary, args...)
	f.logger.Debug("Running yt-dlp", zap.String("command", cmdLine))

	transcript := f.openTranscript()
	if transcript != nil {
		defer transcript.Close()
		fmt.Fprintf(transcript, "\n=== [%s] %s ===\n$ %s\n", time.Now().Format("2006-01-02 15:04:05"), cfg.URL, cmdLine)
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.WaitDelay = waitDelay

	var (
		mu        sync.Mutex
		savedPath string
		lastError string
	)
	handle := func(line string) {
		mu.Lock()
		defer mu.Unlock()

		if transcript != nil {
			fmt.Fprintln(transcript, line)
		}
		parsed := ParseLine(line)
		if parsed.SavedPath != "" {
			savedPath = parsed.SavedPath
			return
		}
		if parsed.Event == nil {
			return
		}
		if parsed.Event.Phase == domain.PhaseLog && parsed.Event.Level == domain.LevelError {
			lastError = parsed.Event.Message
		}
		if sink != nil {
			sink(*parsed.Event)
		}
	}

	var g errgroup.Group
	g.Go(func() error { return scanLines(stdoutR, handle) })
	g.Go(func() error { return scanLines(stderrR, handle) })

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		_ = g.Wait()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrFetcherNotFound, f.binary)
		}
		return "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	waitErr := cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	if err := g.Wait(); err != nil {
		f.logger.Warn("Failed to read yt-dlp output", zap.Error(err))
	}

	if transcript != nil {
		status := "SUCCESS"
		if waitErr != nil {
			status = "FAILED"
		}
		fmt.Fprintf(transcript, "[%s] %s\n=== END ===\n", time.Now().Format("2006-01-02 15:04:05"), status)
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("download cancelled: %w", ctx.Err())
	}

	if waitErr != nil {
		msg := lastError
		if msg == "" {
			msg = waitErr.Error()
		}
		if f.eventLogger != nil {
			f.eventLogger.LogAppError("yt-dlp failed",
				zap.String("url", cfg.URL),
				zap.String("error", msg))
		}
		if isTranscoderMessage(msg) {
			return "", fmt.Errorf("%w: %s", domain.ErrTranscoderMissing, msg)
		}
		return "", errors.New(msg)
	}

	if savedPath == "" {
		return "", fmt.Errorf("yt-dlp exited without reporting an output file")
	}
	return savedPath, nil
}

func (f *YTDLPFetcher) openTranscript() *os.File {
	if f.logsDir == "" {
		return nil
	}
	if err := os.MkdirAll(f.logsDir, 0755); err != nil {
		f.logger.Warn("Failed to create logs directory", zap.Error(err))
		return nil
	}
	path := logger.CategoryLogPath(f.logsDir, logger.CategoryDownload, time.Now())
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		f.logger.Warn("Failed to open download log", zap.String("path", path), zap.Error(err))
		return nil
	}
	return file
}

func scanLines(r io.Reader, handle func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			handle(line)
		}
	}
	if err := scanner.Err(); err != nil {
		// Drain so the writer side never blocks
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

// ParsedLine is one classified line of yt-dlp output
type ParsedLine struct {
	Event     *domain.ProgressEvent
	SavedPath string
}

// ParseLine classifies a line printed by yt-dlp with the flags from BuildArgs
func ParseLine(line string) ParsedLine {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return ParsedLine{}
	case strings.HasPrefix(line, savedPrefix):
		return ParsedLine{SavedPath: strings.TrimSpace(strings.TrimPrefix(line, savedPrefix))}
	case strings.HasPrefix(line, progressPrefix):
		if ev, ok := parseProgress(strings.TrimPrefix(line, progressPrefix)); ok {
			return ParsedLine{Event: &ev}
		}
		ev := domain.LogEvent(domain.LevelDebug, "%s", line)
		return ParsedLine{Event: &ev}
	case strings.HasPrefix(line, "ERROR:"):
		ev := domain.LogEvent(domain.LevelError, "%s", line)
		return ParsedLine{Event: &ev}
	case strings.HasPrefix(line, "WARNING:"):
		ev := domain.LogEvent(domain.LevelWarning, "%s", line)
		return ParsedLine{Event: &ev}
	default:
		ev := domain.LogEvent(domain.LevelDebug, "%s", line)
		return ParsedLine{Event: &ev}
	}
}

// parseProgress reads "status downloaded total estimate speed eta"; yt-dlp prints NA for unknowns
func parseProgress(s string) (domain.ProgressEvent, bool) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return domain.ProgressEvent{}, false
	}

	switch fields[0] {
	case "finished":
		return domain.FinishedEvent(), true
	case "downloading":
	default:
		return domain.ProgressEvent{}, false
	}

	done, _ := parseNumber(fields[1])
	total, ok := parseNumber(fields[2])
	if !ok {
		total, _ = parseNumber(fields[3])
	}
	speed, _ := strconv.ParseFloat(fields[4], 64)
	eta, ok := parseNumber(fields[5])
	if !ok {
		eta = -1
	}
	return domain.DownloadingEvent(total, done, speed, eta), true
}

func parseNumber(s string) (int64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(v), true
}

func isTranscoderMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range transcoderMessages {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
