package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jphed/youtube-video-music-downloader/internal/domain"
	"github.com/jphed/youtube-video-music-downloader/internal/format"
)

// EnvPrefix prefixes every environment override, e.g. YTMD_DOWNLOAD_OUTPUT_DIR
const EnvPrefix = "YTMD"

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// A .env file in the working directory feeds the environment; real variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.config/ytmd")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindDefaults registers every key so AutomaticEnv also applies to keys absent from the file
func bindDefaults(v *viper.Viper, config *domain.Config) {
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}
}

// configValues flattens the config into viper keys
func configValues(config *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":                 config.Server.Host,
		"server.port":                 config.Server.Port,
		"download.base_dir":           config.Download.BaseDir,
		"download.output_dir":         config.Download.OutputDir,
		"download.restrict_filenames": config.Download.RestrictFilenames,
		"download.default_container":  config.Download.DefaultContainer,
		"download.default_quality":    config.Download.DefaultQuality,
		"tools.ytdlp_binary":          config.Tools.YTDLPBinary,
		"tools.ffmpeg_location":       config.Tools.FFmpegLocation,
		"tools.extra_dirs":            config.Tools.ExtraDirs,
		"tools.scan_limit":            config.Tools.ScanLimit,
		"tools.export_path":           config.Tools.ExportPath,
		"history.enabled":             config.History.Enabled,
		"history.database_path":       config.History.DatabasePath,
		"relay.coalesce":              config.Relay.Coalesce,
		"notification.enabled":        config.Notification.Enabled,
		"notification.method":         config.Notification.Method,
		"logging.level":               config.Logging.Level,
		"logging.format":              config.Logging.Format,
		"logging.output_path":         config.Logging.OutputPath,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Tools.FFmpegLocation = expandPath(config.Tools.FFmpegLocation)
	for i, dir := range config.Tools.ExtraDirs {
		config.Tools.ExtraDirs[i] = expandPath(dir)
	}
	config.History.DatabasePath = expandPath(config.History.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.BaseDir == "" {
		return fmt.Errorf("download base directory not configured")
	}

	container, err := domain.ParseContainer(config.Download.DefaultContainer)
	if err != nil {
		return fmt.Errorf("invalid default container: %w", err)
	}
	config.Download.DefaultContainer = string(container)

	quality, err := format.Normalize(container, config.Download.DefaultQuality)
	if err != nil {
		return fmt.Errorf("invalid default quality: %w", err)
	}
	config.Download.DefaultQuality = quality

	if config.Tools.ScanLimit < 0 {
		return fmt.Errorf("scan limit cannot be negative")
	}

	if config.History.Enabled && config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	switch config.Notification.Method {
	case "osascript", "notify-send":
	default:
		return fmt.Errorf("invalid notification method: %s", config.Notification.Method)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnsureOutputDir creates the download directory if needed and returns it
func EnsureOutputDir(config *domain.Config) (string, error) {
	dir := config.Download.ResolvedOutputDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}
