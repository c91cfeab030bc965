package toollocator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

func newTestLocator(goos string, env map[string]string) (*Locator, afero.Fs) {
	fs := afero.NewMemMapFs()
	return &Locator{
		GOOS:     goos,
		Getenv:   func(k string) string { return env[k] },
		LookPath: func(string) (string, error) { return "", errors.New("not found") },
		Fs:       fs,
		logger:   zap.NewNop(),
	}, fs
}

func installTools(t *testing.T, fs afero.Fs, dir string, exe string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "ffmpeg"+exe), []byte("bin"), 0755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "ffprobe"+exe), []byte("bin"), 0755))
}

func assertBinariesExist(t *testing.T, fs afero.Fs, loc domain.ToolLocation) {
	t.Helper()
	require.True(t, loc.Found())
	for _, p := range []string{loc.Executable, loc.Probe} {
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestLocate_Configured(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	installTools(t, fs, "/custom/ffmpeg", "")

	tests := []struct {
		name     string
		location string
	}{
		{"directory", "/custom/ffmpeg"},
		{"executable", "/custom/ffmpeg/ffmpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l.ConfiguredLocation = tt.location
			loc := l.Locate()

			assert.Equal(t, "/custom/ffmpeg", loc.Dir)
			assert.Equal(t, SourceConfigured, loc.Source)
			assertBinariesExist(t, fs, loc)
		})
	}
}

func TestLocate_ConfiguredMissingFallsThrough(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	l.ConfiguredLocation = "/nowhere"
	installTools(t, fs, "/usr/local/bin", "")

	loc := l.Locate()

	assert.Equal(t, "/usr/local/bin", loc.Dir)
	assert.Equal(t, SourceKnownDir, loc.Source)
}

func TestLocate_Path(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	installTools(t, fs, "/opt/bin", "")
	l.LookPath = func(name string) (string, error) {
		return filepath.Join("/opt/bin", name), nil
	}

	loc := l.Locate()

	assert.Equal(t, "/opt/bin", loc.Dir)
	assert.Equal(t, "/opt/bin/ffmpeg", loc.Executable)
	assert.Equal(t, "/opt/bin/ffprobe", loc.Probe)
	assert.Equal(t, SourcePath, loc.Source)
	assertBinariesExist(t, fs, loc)
}

func TestLocate_PathInDifferentDirsIsRejected(t *testing.T) {
	l, _ := newTestLocator("linux", nil)
	l.LookPath = func(name string) (string, error) {
		if name == "ffmpeg" {
			return "/a/ffmpeg", nil
		}
		return "/b/ffprobe", nil
	}

	assert.False(t, l.Locate().Found())
}

func TestLocate_KnownDirs(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		dir  string
		exe  string
	}{
		{"linux usr local", "linux", nil, "/usr/local/bin", ""},
		{"linux home local", "linux", map[string]string{"HOME": "/home/u"}, "/home/u/.local/bin", ""},
		{"darwin homebrew", "darwin", nil, "/opt/homebrew/bin", ""},
		{"darwin macports", "darwin", nil, "/opt/local/bin", ""},
		{"windows winget links", "windows", map[string]string{"LOCALAPPDATA": "/Users/u/AppData/Local"},
			"/Users/u/AppData/Local/Microsoft/WinGet/Links", ".exe"},
		{"windows programs bin", "windows", map[string]string{"LOCALAPPDATA": "/Users/u/AppData/Local"},
			"/Users/u/AppData/Local/Programs/bin", ".exe"},
		{"windows program files", "windows", map[string]string{"ProgramFiles": "/Program Files"},
			"/Program Files/ffmpeg/bin", ".exe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, fs := newTestLocator(tt.goos, tt.env)
			installTools(t, fs, tt.dir, tt.exe)

			loc := l.Locate()

			assert.Equal(t, tt.dir, loc.Dir)
			assert.Equal(t, SourceKnownDir, loc.Source)
			assertBinariesExist(t, fs, loc)
		})
	}
}

func TestLocate_WindowsNeedsExeSuffix(t *testing.T) {
	l, fs := newTestLocator("windows", map[string]string{"LOCALAPPDATA": "/Local"})
	installTools(t, fs, "/Local/Microsoft/WinGet/Links", "")

	assert.False(t, l.Locate().Found())
}

func TestLocate_ExtraDirs(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	l.ExtraDirs = []string{"/srv/tools"}
	installTools(t, fs, "/srv/tools/bin", "")

	loc := l.Locate()

	assert.Equal(t, "/srv/tools/bin", loc.Dir)
	assert.Equal(t, SourceKnownDir, loc.Source)
}

func TestLocate_WinGetPackages(t *testing.T) {
	env := map[string]string{"LOCALAPPDATA": "/Local"}
	packages := "/Local/Microsoft/WinGet/Packages"

	t.Run("package bin", func(t *testing.T) {
		l, fs := newTestLocator("windows", env)
		dir := packages + "/Gyan.FFmpeg_Microsoft.Winget.Source_8wekyb3d8bbwe/bin"
		installTools(t, fs, dir, ".exe")

		loc := l.Locate()

		assert.Equal(t, dir, loc.Dir)
		assert.Equal(t, SourceWinGet, loc.Source)
		assertBinariesExist(t, fs, loc)
	})

	t.Run("versioned build dir", func(t *testing.T) {
		l, fs := newTestLocator("windows", env)
		dir := packages + "/Gyan.FFmpeg_Microsoft.Winget.Source_8wekyb3d8bbwe/ffmpeg-8.0.1-full_build/bin"
		installTools(t, fs, dir, ".exe")

		loc := l.Locate()

		assert.Equal(t, dir, loc.Dir)
		assert.Equal(t, SourceWinGet, loc.Source)
	})

	t.Run("other packages ignored", func(t *testing.T) {
		l, fs := newTestLocator("windows", env)
		installTools(t, fs, packages+"/Someone.Else_1/bin", ".exe")
		// the recursive scan of LOCALAPPDATA would otherwise reach it
		l.ScanLimit = 1

		assert.False(t, l.Locate().Found())
	})
}

func TestLocate_Scan(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	l.ExtraDirs = []string{"/srv"}
	installTools(t, fs, "/srv/media/ffmpeg-7.1/build/bin", "")

	loc := l.Locate()

	assert.Equal(t, "/srv/media/ffmpeg-7.1/build/bin", loc.Dir)
	assert.Equal(t, SourceScan, loc.Source)
	assertBinariesExist(t, fs, loc)
}

func TestLocate_ScanLimit(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	l.ExtraDirs = []string{"/srv"}
	// Walk order is lexical, so the "a" directories are visited first
	for i := 0; i < 20; i++ {
		require.NoError(t, fs.MkdirAll(fmt.Sprintf("/srv/a%02d", i), 0755))
	}
	installTools(t, fs, "/srv/z/deep", "")

	l.ScanLimit = 5
	assert.False(t, l.Locate().Found())

	l.ScanLimit = 100
	assert.Equal(t, "/srv/z/deep", l.Locate().Dir)
}

func TestLocate_NotFound(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows"} {
		t.Run(goos, func(t *testing.T) {
			l, fs := newTestLocator(goos, map[string]string{"LOCALAPPDATA": "/Local", "HOME": "/home/u"})
			// ffmpeg alone is not enough
			require.NoError(t, fs.MkdirAll("/usr/local/bin", 0755))
			require.NoError(t, afero.WriteFile(fs, "/usr/local/bin/ffmpeg", []byte("bin"), 0755))

			loc := l.Locate()

			assert.False(t, loc.Found())
			assert.Equal(t, domain.ToolLocation{}, loc)
		})
	}
}

func TestLocate_Idempotent(t *testing.T) {
	l, fs := newTestLocator("linux", nil)
	installTools(t, fs, "/usr/bin", "")

	first := l.Locate()
	second := l.Locate()

	assert.Equal(t, first, second)
}

func TestNew(t *testing.T) {
	l := New(domain.ToolsConfig{FFmpegLocation: "/x", ExtraDirs: []string{"/y"}}, zap.NewNop())

	assert.Equal(t, DefaultScanLimit, l.ScanLimit)
	assert.Equal(t, "/x", l.ConfiguredLocation)
	assert.Contains(t, l.Roots(), "/y")
}

func TestExportPath(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	loc := domain.ToolLocation{Dir: "/opt/ffmpeg/bin", Executable: "/opt/ffmpeg/bin/ffmpeg"}

	changed, err := ExportPath(loc)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "/opt/ffmpeg/bin"+string(os.PathListSeparator)+"/usr/bin", os.Getenv("PATH"))

	changed, err = ExportPath(loc)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "/opt/ffmpeg/bin"+string(os.PathListSeparator)+"/usr/bin", os.Getenv("PATH"))
}

func TestExportPath_NotFoundIsNoop(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	changed, err := ExportPath(domain.ToolLocation{})

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "/usr/bin", os.Getenv("PATH"))
}
