// Package toollocator finds a directory holding both ffmpeg and ffprobe.
package toollocator

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// Search tiers, recorded in ToolLocation.Source
const (
	SourceConfigured = "configured"
	SourcePath       = "path"
	SourceKnownDir   = "known_dir"
	SourceWinGet     = "winget"
	SourceScan       = "scan"
)

// DefaultScanLimit caps the number of directories visited by the recursive scan
const DefaultScanLimit = 2000

const wingetPackagePrefix = "Gyan.FFmpeg_"

var errScanDone = errors.New("scan done")

// Locator searches for the transcoder in increasingly expensive tiers.
// All host access goes through its fields so every tier can be exercised in tests.
type Locator struct {
	GOOS     string
	Getenv   func(string) string
	LookPath func(string) (string, error)
	Fs       afero.Fs

	ConfiguredLocation string
	ExtraDirs          []string
	ScanLimit          int

	logger *zap.Logger
}

// New creates a locator bound to the host
func New(cfg domain.ToolsConfig, logger *zap.Logger) *Locator {
	limit := cfg.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	return &Locator{
		GOOS:               runtime.GOOS,
		Getenv:             os.Getenv,
		LookPath:           exec.LookPath,
		Fs:                 afero.NewOsFs(),
		ConfiguredLocation: cfg.FFmpegLocation,
		ExtraDirs:          cfg.ExtraDirs,
		ScanLimit:          limit,
		logger:             logger,
	}
}

// Locate runs the search tiers in order and returns the first hit.
// It never fails: the zero ToolLocation means the tools are absent.
func (l *Locator) Locate() domain.ToolLocation {
	tiers := []struct {
		source string
		find   func() (string, bool)
	}{
		{SourceConfigured, l.fromConfigured},
		{SourcePath, l.fromPath},
		{SourceKnownDir, l.fromKnownDirs},
		{SourceWinGet, l.fromWinGet},
		{SourceScan, l.fromScan},
	}

	for _, tier := range tiers {
		dir, ok := tier.find()
		if !ok {
			continue
		}
		loc := domain.ToolLocation{
			Dir:        dir,
			Executable: filepath.Join(dir, l.binary("ffmpeg")),
			Probe:      filepath.Join(dir, l.binary("ffprobe")),
			Source:     tier.source,
		}
		l.log().Debug("Located ffmpeg",
			zap.String("dir", loc.Dir),
			zap.String("source", loc.Source))
		return loc
	}

	l.log().Debug("ffmpeg not found")
	return domain.ToolLocation{}
}

func (l *Locator) fromConfigured() (string, bool) {
	loc := strings.TrimSpace(l.ConfiguredLocation)
	if loc == "" {
		return "", false
	}
	if isDir, _ := afero.IsDir(l.Fs, loc); !isDir {
		loc = filepath.Dir(loc)
	}
	return loc, l.hasBoth(loc)
}

func (l *Locator) fromPath() (string, bool) {
	if l.LookPath == nil {
		return "", false
	}
	ffmpeg, err := l.LookPath(l.binary("ffmpeg"))
	if err != nil {
		return "", false
	}
	ffprobe, err := l.LookPath(l.binary("ffprobe"))
	if err != nil {
		return "", false
	}
	dir := filepath.Dir(ffmpeg)
	if filepath.Dir(ffprobe) != dir {
		return "", false
	}
	return dir, true
}

func (l *Locator) fromKnownDirs() (string, bool) {
	for _, base := range l.candidateRoots() {
		for _, dir := range []string{base, filepath.Join(base, "bin")} {
			if l.hasBoth(dir) {
				return dir, true
			}
		}
	}
	return "", false
}

func (l *Locator) fromWinGet() (string, bool) {
	if l.GOOS != "windows" {
		return "", false
	}
	localAppData := l.env("LOCALAPPDATA")
	if localAppData == "" {
		return "", false
	}

	packages := filepath.Join(localAppData, "Microsoft", "WinGet", "Packages")
	entries, err := afero.ReadDir(l.Fs, packages)
	if err != nil {
		return "", false
	}

	for _, pkg := range entries {
		if !pkg.IsDir() || !strings.HasPrefix(pkg.Name(), wingetPackagePrefix) {
			continue
		}
		pkgDir := filepath.Join(packages, pkg.Name())
		if bin := filepath.Join(pkgDir, "bin"); l.hasBoth(bin) {
			return bin, true
		}

		// Usual layout is <pkg>/ffmpeg-<version>-full_build/bin
		children, err := afero.ReadDir(l.Fs, pkgDir)
		if err != nil {
			continue
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			if bin := filepath.Join(pkgDir, child.Name(), "bin"); l.hasBoth(bin) {
				return bin, true
			}
		}
	}
	return "", false
}

func (l *Locator) fromScan() (string, bool) {
	limit := l.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	scanned := 0
	found := ""
	for _, root := range l.candidateRoots() {
		if isDir, _ := afero.IsDir(l.Fs, root); !isDir {
			continue
		}
		_ = afero.Walk(l.Fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if info != nil && info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.IsDir() {
				return nil
			}
			scanned++
			if scanned > limit {
				return errScanDone
			}
			if l.hasBoth(path) {
				found = path
				return errScanDone
			}
			return nil
		})
		if found != "" {
			return found, true
		}
		if scanned > limit {
			l.log().Debug("ffmpeg scan limit reached", zap.Int("limit", limit))
			return "", false
		}
	}
	return "", false
}

// candidateRoots lists the well-known install and shim directories for the platform,
// followed by the configured extra directories. Duplicates are dropped.
func (l *Locator) candidateRoots() []string {
	var roots []string
	home := l.env("HOME")

	switch l.GOOS {
	case "windows":
		if local := l.env("LOCALAPPDATA"); local != "" {
			roots = append(roots,
				filepath.Join(local, "Microsoft", "WinGet", "Links"),
				filepath.Join(local, "Programs"),
				local,
			)
		}
		drive := l.env("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		roots = append(roots, drive+`\ffmpeg`)
		for _, key := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
			if pf := l.env(key); pf != "" {
				roots = append(roots, filepath.Join(pf, "ffmpeg"))
			}
		}
	case "darwin":
		roots = append(roots, "/opt/homebrew/bin", "/usr/local/bin", "/opt/local/bin")
	default:
		roots = append(roots, "/usr/local/bin", "/usr/bin", "/snap/bin")
		if home != "" {
			roots = append(roots, filepath.Join(home, ".local", "bin"))
		}
		roots = append(roots, "/home/linuxbrew/.linuxbrew/bin")
	}

	roots = append(roots, l.ExtraDirs...)

	seen := make(map[string]bool, len(roots))
	out := roots[:0]
	for _, r := range roots {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func (l *Locator) hasBoth(dir string) bool {
	return l.isFile(filepath.Join(dir, l.binary("ffmpeg"))) &&
		l.isFile(filepath.Join(dir, l.binary("ffprobe")))
}

func (l *Locator) isFile(path string) bool {
	info, err := l.Fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (l *Locator) binary(name string) string {
	if l.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func (l *Locator) env(key string) string {
	if l.Getenv == nil {
		return ""
	}
	return l.Getenv(key)
}

func (l *Locator) log() *zap.Logger {
	if l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// ExportPath prepends loc.Dir to PATH so child processes resolve the tools.
// It is a no-op when the tools were not found or the directory is already on PATH.
// It reports whether PATH was changed.
func ExportPath(loc domain.ToolLocation) (bool, error) {
	if !loc.Found() {
		return false, nil
	}
	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if samePath(entry, loc.Dir) {
			return false, nil
		}
	}
	updated := loc.Dir
	if current != "" {
		updated += string(os.PathListSeparator) + current
	}
	if err := os.Setenv("PATH", updated); err != nil {
		return false, err
	}
	return true, nil
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Roots returns the directories searched by the known-dir and scan tiers, in search order
func (l *Locator) Roots() []string {
	return l.candidateRoots()
}
