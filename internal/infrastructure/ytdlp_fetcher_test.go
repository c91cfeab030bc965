package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/pkg/logger"
)

func indexOf(args []string, flag string) int {
	for i, a := range args {
		if a == flag {
			return i
		}
	}
	return -1
}

func TestBuildArgs_Video(t *testing.T) {
	cfg := domain.JobConfig{
		URL:               "https://www.youtube.com/watch?v=abc",
		Plan:              domain.FormatPlan{Selector: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best", MergeOutputFormat: "mp4"},
		Tools:             domain.ToolLocation{Dir: "/usr/bin", Executable: "/usr/bin/ffmpeg", Probe: "/usr/bin/ffprobe"},
		OutputTemplate:    "/out/%(title)s.%(ext)s",
		NoPlaylist:        true,
		Quiet:             true,
		NoWarnings:        true,
		RestrictFilenames: true,
	}

	args := BuildArgs(cfg)

	assert.Equal(t, "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best", args[indexOf(args, "-f")+1])
	assert.Equal(t, "/out/%(title)s.%(ext)s", args[indexOf(args, "-o")+1])
	assert.Equal(t, "mp4", args[indexOf(args, "--merge-output-format")+1])
	assert.Equal(t, "/usr/bin", args[indexOf(args, "--ffmpeg-location")+1])
	for _, flag := range []string{"--no-playlist", "--quiet", "--no-warnings", "--restrict-filenames", "--newline", "--no-simulate"} {
		assert.Contains(t, args, flag)
	}
	assert.NotContains(t, args, "-x")
	assert.Equal(t, []string{"--", "https://www.youtube.com/watch?v=abc"}, args[len(args)-2:])
}

func TestBuildArgs_AudioWithoutTools(t *testing.T) {
	cfg := domain.JobConfig{
		URL: "https://youtu.be/abc",
		Plan: domain.FormatPlan{
			Selector:       "bestaudio/best",
			PostProcessing: &domain.PostProcessing{Codec: "mp3", BitrateKbps: 192, ExtraArgs: []string{"-ar", "44100"}},
		},
		OutputTemplate: "/out/%(title)s.%(ext)s",
	}

	args := BuildArgs(cfg)

	assert.Contains(t, args, "-x")
	assert.Equal(t, "mp3", args[indexOf(args, "--audio-format")+1])
	assert.Equal(t, "192K", args[indexOf(args, "--audio-quality")+1])
	assert.Equal(t, "ExtractAudio:-ar 44100", args[indexOf(args, "--postprocessor-args")+1])
	assert.Equal(t, -1, indexOf(args, "--ffmpeg-location"))
	assert.Equal(t, -1, indexOf(args, "--merge-output-format"))
	assert.Equal(t, -1, indexOf(args, "--no-playlist"))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		phase domain.Phase
		level domain.LogLevel
		saved string
		nilEv bool
	}{
		{name: "downloading", line: "[progress] downloading 512 1024 NA 256.5 2", phase: domain.PhaseDownloading},
		{name: "finished", line: "[progress] finished 1024 1024 NA NA NA", phase: domain.PhaseFinished},
		{name: "saved", line: "[saved] /out/My Song.mp3", saved: "/out/My Song.mp3", nilEv: true},
		{name: "error", line: "ERROR: [youtube] abc: Video unavailable", phase: domain.PhaseLog, level: domain.LevelError},
		{name: "warning", line: "WARNING: [youtube] nsig extraction failed", phase: domain.PhaseLog, level: domain.LevelWarning},
		{name: "other", line: "[ExtractAudio] Destination: /out/a.mp3", phase: domain.PhaseLog, level: domain.LevelDebug},
		{name: "malformed progress", line: "[progress] downloading 1", phase: domain.PhaseLog, level: domain.LevelDebug},
		{name: "blank", line: "   ", nilEv: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseLine(tt.line)

			assert.Equal(t, tt.saved, parsed.SavedPath)
			if tt.nilEv {
				assert.Nil(t, parsed.Event)
				return
			}
			require.NotNil(t, parsed.Event)
			assert.Equal(t, tt.phase, parsed.Event.Phase)
			assert.Equal(t, tt.level, parsed.Event.Level)
		})
	}
}

func TestParseLine_ProgressFields(t *testing.T) {
	tests := []struct {
		line  string
		total int64
		done  int64
		speed float64
		eta   int64
	}{
		{"[progress] downloading 512 1024 NA 256.5 2", 1024, 512, 256.5, 2},
		{"[progress] downloading 100 NA 4000.0 NA NA", 4000, 100, 0, -1},
		{"[progress] downloading 100 NA NA NA NA", 0, 100, 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			parsed := ParseLine(tt.line)
			require.NotNil(t, parsed.Event)
			assert.Equal(t, tt.total, parsed.Event.BytesTotal)
			assert.Equal(t, tt.done, parsed.Event.BytesDone)
			assert.Equal(t, tt.speed, parsed.Event.SpeedBps)
			assert.Equal(t, tt.eta, parsed.Event.ETASeconds)
		})
	}
}

// fakeYTDLP writes a shell script standing in for yt-dlp
func fakeYTDLP(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (e *eventLog) sink(ev domain.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func jobConfig(outDir string, container domain.Container) domain.JobConfig {
	return domain.JobConfig{
		URL:            "https://youtu.be/abc",
		Container:      container,
		Plan:           domain.FormatPlan{Selector: "bestaudio/best"},
		OutputDir:      outDir,
		OutputTemplate: filepath.Join(outDir, "%(title)s.%(ext)s"),
		NoPlaylist:     true,
		Quiet:          true,
		NoWarnings:     true,
	}
}

func TestYTDLPFetcher_Success(t *testing.T) {
	binary := fakeYTDLP(t, `
echo "[progress] downloading 512 1024 NA 256.5 2"
echo "WARNING: falling back to generic extractor" >&2
echo "[progress] downloading 1024 1024 NA 256.5 0"
echo "[progress] finished 1024 1024 NA NA NA"
echo "[saved] /out/My Song.mp3"
`)
	logsDir := t.TempDir()
	fetcher := NewYTDLPFetcher(binary, logsDir, zap.NewNop(), nil)
	rec := &eventLog{}

	path, err := fetcher.Fetch(context.Background(), jobConfig(filepath.Join(t.TempDir(), "out"), domain.ContainerAudio), rec.sink)

	require.NoError(t, err)
	assert.Equal(t, "/out/My Song.mp3", path)

	var progress []int64
	var warnings int
	for _, ev := range rec.events {
		switch {
		case ev.Phase == domain.PhaseDownloading:
			progress = append(progress, ev.BytesDone)
		case ev.Phase == domain.PhaseLog && ev.Level == domain.LevelWarning:
			warnings++
		}
	}
	assert.Equal(t, []int64{512, 1024}, progress)
	assert.Equal(t, 1, warnings)

	transcript, err := os.ReadFile(logger.CategoryLogPath(logsDir, logger.CategoryDownload, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "--progress-template")
	assert.Contains(t, string(transcript), "SUCCESS")
}

func TestYTDLPFetcher_TranscoderMissing(t *testing.T) {
	binary := fakeYTDLP(t, `
echo "ERROR: Postprocessing: ffprobe and ffmpeg not found. Please install or provide the path using --ffmpeg-location" >&2
exit 1
`)
	fetcher := NewYTDLPFetcher(binary, "", zap.NewNop(), nil)

	_, err := fetcher.Fetch(context.Background(), jobConfig(t.TempDir(), domain.ContainerAudio), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTranscoderMissing)
}

func TestYTDLPFetcher_FailureUsesLastErrorLine(t *testing.T) {
	binary := fakeYTDLP(t, `
echo "ERROR: [youtube] abc: Video unavailable" >&2
exit 1
`)
	fetcher := NewYTDLPFetcher(binary, "", zap.NewNop(), nil)
	rec := &eventLog{}

	_, err := fetcher.Fetch(context.Background(), jobConfig(t.TempDir(), domain.ContainerVideo), rec.sink)

	require.Error(t, err)
	assert.Equal(t, "ERROR: [youtube] abc: Video unavailable", err.Error())
	assert.NotErrorIs(t, err, domain.ErrTranscoderMissing)
	require.Len(t, rec.events, 1)
	assert.Equal(t, domain.LevelError, rec.events[0].Level)
}

func TestYTDLPFetcher_NoOutputFile(t *testing.T) {
	binary := fakeYTDLP(t, "exit 0\n")
	fetcher := NewYTDLPFetcher(binary, "", zap.NewNop(), nil)

	_, err := fetcher.Fetch(context.Background(), jobConfig(t.TempDir(), domain.ContainerVideo), nil)

	assert.Error(t, err)
}

func TestYTDLPFetcher_Cancel(t *testing.T) {
	binary := fakeYTDLP(t, "exec sleep 30\n")
	fetcher := NewYTDLPFetcher(binary, "", zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := fetcher.Fetch(ctx, jobConfig(t.TempDir(), domain.ContainerVideo), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestYTDLPFetcher_BinaryNotFound(t *testing.T) {
	fetcher := NewYTDLPFetcher(filepath.Join(t.TempDir(), "no-such-yt-dlp"), "", zap.NewNop(), nil)

	_, err := fetcher.Fetch(context.Background(), jobConfig(t.TempDir(), domain.ContainerVideo), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetcherNotFound)
	assert.True(t, strings.Contains(err.Error(), "no-such-yt-dlp"))
}
