package domain

import "path/filepath"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Tools        ToolsConfig        `mapstructure:"tools"`
	History      HistoryConfig      `mapstructure:"history"`
	Relay        RelayConfig        `mapstructure:"relay"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir           string `mapstructure:"base_dir"`
	OutputDir         string `mapstructure:"output_dir"` // defaults to <base_dir>/downloads
	RestrictFilenames bool   `mapstructure:"restrict_filenames"`
	DefaultContainer  string `mapstructure:"default_container"`
	DefaultQuality    string `mapstructure:"default_quality"`
}

// ResolvedOutputDir returns the directory finished files are written to
func (d DownloadConfig) ResolvedOutputDir() string {
	if d.OutputDir != "" {
		return d.OutputDir
	}
	return filepath.Join(d.BaseDir, "downloads")
}

// LogsDir returns the directory for categorized log files
func (d DownloadConfig) LogsDir() string {
	return filepath.Join(d.BaseDir, "logs")
}

// ToolsConfig contains external tool configuration
type ToolsConfig struct {
	YTDLPBinary    string   `mapstructure:"ytdlp_binary"`
	FFmpegLocation string   `mapstructure:"ffmpeg_location"` // explicit dir or executable, skips discovery
	ExtraDirs      []string `mapstructure:"extra_dirs"`
	ScanLimit      int      `mapstructure:"scan_limit"`
	ExportPath     bool     `mapstructure:"export_path"` // prepend the located dir to PATH at startup
}

// HistoryConfig contains job history configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// RelayConfig contains progress relay configuration
type RelayConfig struct {
	Coalesce bool `mapstructure:"coalesce"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Download: DownloadConfig{
			BaseDir:           "$HOME/.local/share/ytmd",
			OutputDir:         "",
			RestrictFilenames: false,
			DefaultContainer:  string(ContainerVideo),
			DefaultQuality:    "best",
		},
		Tools: ToolsConfig{
			YTDLPBinary: "yt-dlp",
			ScanLimit:   2000,
			ExportPath:  false,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.local/share/ytmd/history.db",
		},
		Relay: RelayConfig{
			Coalesce: true,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
