// Package config loads letter-snap settings from a YAML file, an optional
// .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/letter-snap/internal/camera"
)

// Camera types.
const (
	CameraOpenCV = "opencv"
	CameraStill  = "still"
	CameraNone   = "none"
)

// ServerConfig controls the local API.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	GRPCAddr           string `yaml:"grpc_addr"` // health service; empty disables it
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// PredictionConfig points at the classifier.
type PredictionConfig struct {
	BaseURL string `yaml:"base_url"`
}

// CameraConfig selects the capture source.
type CameraConfig struct {
	Type       string `yaml:"type"`        // opencv, still or none
	Device     string `yaml:"device"`      // opencv device index or path
	StillImage string `yaml:"still_image"` // picture served by the still camera
	FacingMode string `yaml:"facing_mode"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

// AuthConfig enables bearer-token checks on the API when Secret is set.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	JWTAudience string `yaml:"jwt_audience"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config aggregates all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Prediction PredictionConfig `yaml:"prediction"`
	Camera     CameraConfig     `yaml:"camera"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	constraints := camera.DefaultConstraints()
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownTimeoutSec: 15,
		},
		Prediction: PredictionConfig{BaseURL: "http://localhost:8000"},
		Camera: CameraConfig{
			Type:       CameraOpenCV,
			FacingMode: constraints.FacingMode,
			Width:      constraints.Width,
			Height:     constraints.Height,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (optional), then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	getEnv := func(key string, target *string) {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}

	getEnv("LETTERSNAP_ADDR", &c.Server.Addr)
	getEnv("LETTERSNAP_GRPC_ADDR", &c.Server.GRPCAddr)
	getEnv("LETTERSNAP_PREDICTION_URL", &c.Prediction.BaseURL)
	getEnv("LETTERSNAP_CAMERA", &c.Camera.Type)
	getEnv("LETTERSNAP_CAMERA_DEVICE", &c.Camera.Device)
	getEnv("LETTERSNAP_STILL_IMAGE", &c.Camera.StillImage)
	getEnv("LETTERSNAP_LOG_LEVEL", &c.Log.Level)
	getEnv("JWT_SECRET", &c.Auth.JWTSecret)
	getEnv("JWT_AUDIENCE", &c.Auth.JWTAudience)

	if value, ok := lookup("LETTERSNAP_LOG_DEVELOPMENT"); ok && value != "" {
		dev, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("LETTERSNAP_LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = dev
	}
	return nil
}

// Validate checks required fields and fills derived defaults.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		c.Server.ShutdownTimeoutSec = 15
	}

	u, err := url.Parse(c.Prediction.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("prediction.base_url must be an absolute http(s) URL, got %q", c.Prediction.BaseURL)
	}

	switch c.Camera.Type {
	case "":
		c.Camera.Type = CameraOpenCV
	case CameraOpenCV, CameraNone:
	case CameraStill:
		if c.Camera.StillImage == "" {
			return fmt.Errorf("camera.still_image is required for camera type %q", CameraStill)
		}
	default:
		return fmt.Errorf("camera.type must be one of %s, %s, %s; got %q", CameraOpenCV, CameraStill, CameraNone, c.Camera.Type)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera width and height must not be negative")
	}
	return nil
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// Constraints returns the camera request hints.
func (c *Config) Constraints() camera.Constraints {
	return camera.Constraints{
		Device:     c.Camera.Device,
		FacingMode: c.Camera.FacingMode,
		Width:      c.Camera.Width,
		Height:     c.Camera.Height,
	}
}

// CameraSource builds the configured capture source.
func (c *Config) CameraSource() (camera.Source, error) {
	switch c.Camera.Type {
	case CameraStill:
		return camera.LoadStillSource(c.Camera.StillImage)
	case CameraNone:
		return camera.Unavailable{}, nil
	default:
		return camera.NewOpenCV(), nil
	}
}
