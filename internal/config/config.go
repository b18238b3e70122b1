package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved widget configuration.
type Config struct {
	Media     MediaConfig   `mapstructure:"media" yaml:"media"`
	Encodings []string      `mapstructure:"encodings" yaml:"encodings" validate:"required,min=1,dive,required"`
	Capture   CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Upload    UploadConfig  `mapstructure:"upload" yaml:"upload"`
	Player    PlayerConfig  `mapstructure:"player" yaml:"player"`
	Output    OutputConfig  `mapstructure:"output" yaml:"output"`
	Server    ServerConfig  `mapstructure:"server" yaml:"server"`
	Log       LogConfig     `mapstructure:"log" yaml:"log"`
}

// MediaConfig declares the encoding family to request and the suffix for generated names.
type MediaConfig struct {
	MimeType      string `mapstructure:"mime_type" yaml:"mime_type" validate:"required,contains=/"`
	FileExtension string `mapstructure:"file_extension" yaml:"file_extension" validate:"required,startswith=."`
}

type CaptureConfig struct {
	Backend           string        `mapstructure:"backend" yaml:"backend" validate:"oneof=pipewire pulse auto"`
	Kind              string        `mapstructure:"kind" yaml:"kind" validate:"oneof=audio audio+video"`
	Source            string        `mapstructure:"source" yaml:"source" validate:"required"`
	PermissionTimeout time.Duration `mapstructure:"permission_timeout" yaml:"permission_timeout" validate:"gt=0"`
	Prompt            bool          `mapstructure:"prompt" yaml:"prompt"` // ask before opening the device
}

type UploadConfig struct {
	Endpoint         string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	CompletedCommand string        `mapstructure:"completed_command" yaml:"completed_command,omitempty"`
}

type PlayerConfig struct {
	Kind     string `mapstructure:"kind" yaml:"kind" validate:"required"`
	Autoplay bool   `mapstructure:"autoplay" yaml:"autoplay"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory" validate:"required"`
}

type ServerConfig struct {
	Port            string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
	UploadDirectory string `mapstructure:"upload_directory" yaml:"upload_directory" validate:"required"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" validate:"gte=1"`
}

type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
}

// DefaultPermissionTimeout bounds the wait for a device permission decision.
const DefaultPermissionTimeout = 15 * time.Second

var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

var defaultConfig = Config{
	Media: MediaConfig{
		MimeType:      "audio/ogg",
		FileExtension: ".ogg",
	},
	Encodings: []string{
		"audio/ogg;codecs=opus",
		"audio/webm;codecs=opus",
		"audio/mpeg",
		"audio/wav",
	},
	Capture: CaptureConfig{
		Backend:           "auto",
		Kind:              "audio",
		Source:            "default",
		PermissionTimeout: DefaultPermissionTimeout,
		Prompt:            true,
	},
	Upload: UploadConfig{
		Endpoint: "http://localhost:8080/catch",
		Timeout:  60 * time.Second,
	},
	Player: PlayerConfig{
		Kind: "text",
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Audio", "yarm"),
	},
	Server: ServerConfig{
		Port:            "8080",
		UploadDirectory: "uploads",
		MaxUploadMB:     32,
	},
	Log: LogConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	cfg.Encodings = append([]string(nil), defaultConfig.Encodings...)
	return &cfg
}

// Load reads configFile on top of the defaults. A missing file is not an
// error: the defaults (plus YARM_* environment overrides) are used instead.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("YARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "+", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Server.UploadDirectory = expandPath(cfg.Server.UploadDirectory)
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig
	v.SetDefault("media.mime_type", d.Media.MimeType)
	v.SetDefault("media.file_extension", d.Media.FileExtension)
	v.SetDefault("encodings", d.Encodings)
	v.SetDefault("capture.backend", d.Capture.Backend)
	v.SetDefault("capture.kind", d.Capture.Kind)
	v.SetDefault("capture.source", d.Capture.Source)
	v.SetDefault("capture.permission_timeout", d.Capture.PermissionTimeout)
	v.SetDefault("capture.prompt", d.Capture.Prompt)
	v.SetDefault("upload.endpoint", d.Upload.Endpoint)
	v.SetDefault("upload.timeout", d.Upload.Timeout)
	v.SetDefault("upload.completed_command", d.Upload.CompletedCommand)
	v.SetDefault("player.kind", d.Player.Kind)
	v.SetDefault("player.autoplay", d.Player.Autoplay)
	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.upload_directory", d.Server.UploadDirectory)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

var validate = validator.New()

// Validate checks struct tags first, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed '%s' validation (value: %v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}

	if !extensionPattern.MatchString(cfg.Media.FileExtension) {
		return fmt.Errorf("media.file_extension must look like '.ogg', got: %s", cfg.Media.FileExtension)
	}

	for i, enc := range cfg.Encodings {
		if !strings.Contains(enc, "/") {
			return fmt.Errorf("encodings[%d] must be a mime type, got: %s", i, enc)
		}
	}

	return nil
}

// fieldPath turns "Config.Capture.PermissionTimeout" into "capture.permissiontimeout".
func fieldPath(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}

// WriteDefault writes the built-in configuration to path as YAML.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(path, out, 0644)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
