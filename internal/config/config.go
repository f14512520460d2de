// Package config loads falldetect settings from a JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/falldetect/internal/detector"
	"github.com/ayusman/falldetect/internal/fall"
)

// maxFileSize caps the config file read from disk.
const maxFileSize = 1 << 20

// Duration is a time.Duration written as a string such as "1.2s" in JSON.
type Duration time.Duration

// MarshalJSON encodes the duration in time.Duration string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1.2s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Thresholds mirrors fall.Thresholds with JSON names.
type Thresholds struct {
	YVelocity       float64  `json:"y_velocity"`
	Angle           float64  `json:"angle"`
	HeightFactor    float64  `json:"height_factor"`
	ConfirmDuration Duration `json:"confirm_duration"`
}

// Camera selects the frame source.
type Camera struct {
	Device int `json:"device"`
	// Video plays a file instead of opening Device when set.
	Video  string `json:"video,omitempty"`
	Mirror bool   `json:"mirror"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps"`
}

// Pose configures the pose landmark subprocess.
type Pose struct {
	ModelComplexity        int     `json:"model_complexity"`
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
	Script                 string  `json:"script,omitempty"`
	Python                 string  `json:"python,omitempty"`
}

// Objects configures the bounding-box detector.
type Objects struct {
	Model          string  `json:"model,omitempty"`
	ScoreThreshold float64 `json:"score_threshold"`
	MaxResults     int     `json:"max_results"`
}

// Config is the full application configuration.
type Config struct {
	Thresholds Thresholds `json:"thresholds"`
	Camera     Camera     `json:"camera"`
	Pose       Pose       `json:"pose"`
	Objects    Objects    `json:"objects"`

	DataDir       string   `json:"data_dir,omitempty"`
	PluginDir     string   `json:"plugin_dir,omitempty"`
	PluginTimeout Duration `json:"plugin_timeout"`
	ServerAddr    string   `json:"server_addr"`
	StaticDir     string   `json:"static_dir,omitempty"`
	TracePath     string   `json:"trace_path,omitempty"`
	Headless      bool     `json:"headless"`
	Tray          bool     `json:"tray"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	th := fall.DefaultThresholds()
	pose := detector.DefaultConfig()
	return &Config{
		Thresholds: Thresholds{
			YVelocity:       th.YVelocityThreshold,
			Angle:           th.AngleThreshold,
			HeightFactor:    th.HeightThresholdFactor,
			ConfirmDuration: Duration(th.ConfirmDuration),
		},
		Camera: Camera{
			Mirror: true,
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Pose: Pose{
			ModelComplexity:        pose.ModelComplexity,
			MinDetectionConfidence: pose.MinConfidence,
			MinTrackingConfidence:  pose.MinTrackingConf,
		},
		Objects: Objects{
			ScoreThreshold: 0.5,
			MaxResults:     5,
		},
		PluginTimeout: Duration(5 * time.Second),
		ServerAddr:    ":8080",
	}
}

// Load reads a JSON config file over Default and validates the result.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var errs []error
	if err := c.FallThresholds().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Device < 0 {
		errs = append(errs, fmt.Errorf("camera device must be non-negative, got %d", c.Camera.Device))
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		errs = append(errs, fmt.Errorf("camera size must be non-negative, got %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera fps must be positive, got %d", c.Camera.FPS))
	}
	if c.Pose.ModelComplexity < 0 || c.Pose.ModelComplexity > 2 {
		errs = append(errs, fmt.Errorf("pose model_complexity must be 0, 1 or 2, got %d", c.Pose.ModelComplexity))
	}
	if !unit(c.Pose.MinDetectionConfidence) || !unit(c.Pose.MinTrackingConfidence) {
		errs = append(errs, errors.New("pose confidences must be between 0 and 1"))
	}
	if !unit(c.Objects.ScoreThreshold) {
		errs = append(errs, fmt.Errorf("objects score_threshold must be between 0 and 1, got %f", c.Objects.ScoreThreshold))
	}
	if c.Objects.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("objects max_results must be positive, got %d", c.Objects.MaxResults))
	}
	if c.PluginTimeout <= 0 {
		errs = append(errs, errors.New("plugin_timeout must be positive"))
	}
	if strings.TrimSpace(c.ServerAddr) == "" && !c.Headless {
		errs = append(errs, errors.New("server_addr is required unless headless"))
	}
	return errors.Join(errs...)
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// FallThresholds converts the thresholds section for the fall package.
func (c *Config) FallThresholds() fall.Thresholds {
	return fall.Thresholds{
		YVelocityThreshold:    c.Thresholds.YVelocity,
		AngleThreshold:        c.Thresholds.Angle,
		HeightThresholdFactor: c.Thresholds.HeightFactor,
		ConfirmDuration:       time.Duration(c.Thresholds.ConfirmDuration),
	}
}

// DetectorConfig converts the pose section for the detector package.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		ModelComplexity: c.Pose.ModelComplexity,
		MinConfidence:   c.Pose.MinDetectionConfidence,
		MinTrackingConf: c.Pose.MinTrackingConfidence,
		ScriptPath:      c.Pose.Script,
		Python:          c.Pose.Python,
	}
}

// ResolveDataDir returns DataDir, defaulting to ~/.falldetect, and creates it.
func (c *Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".falldetect")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
