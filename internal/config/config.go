// Package config holds the runtime configuration for camrover.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrConfig is returned when the configuration or a required asset is unusable.
// It is the only error class that is fatal at startup.
var ErrConfig = errors.New("config error")

// Default rover configuration.
const (
	DefaultRoverIP     = "192.168.4.1"
	DefaultControlPort = "80"
	DefaultStreamPort  = "81"
	DefaultListen      = ":8080"
	DefaultTarget      = "person"

	// SourceRover selects the rover's own MJPEG stream as the video source.
	SourceRover = "rover"
)

// Config holds every tunable of the application.
type Config struct {
	RoverIP     string
	ControlPort string
	StreamPort  string
	LinkTimeout time.Duration

	// Source is a device index ("0"), a stream URL, or SourceRover.
	Source string

	ModelDir    string
	Weights     string
	ModelConfig string
	Names       string
	HandScript  string

	Target        string
	DisplayWidth  int
	DisplayHeight int
	DetectWidth   int
	DetectHeight  int
	Confidence    float64
	NMSThreshold  float64
	ProcessEveryN int

	TickInterval      time.Duration
	RetryBackoff      time.Duration
	FPSInterval       time.Duration
	StatusInterval    time.Duration
	DetectionInterval time.Duration

	Listen   string
	LogLevel string
	Window   bool
	Tray     bool
}

// Default returns the configuration the rover firmware ships with.
func Default() Config {
	return Config{
		RoverIP:     DefaultRoverIP,
		ControlPort: DefaultControlPort,
		StreamPort:  DefaultStreamPort,
		LinkTimeout: 2 * time.Second,

		Source: "0",

		ModelDir:    ".",
		Weights:     "yolov3.weights",
		ModelConfig: "yolov3.cfg",
		Names:       "coco.names",

		Target:        DefaultTarget,
		DisplayWidth:  640,
		DisplayHeight: 480,
		DetectWidth:   320,
		DetectHeight:  320,
		Confidence:    0.5,
		NMSThreshold:  0.4,
		ProcessEveryN: 2,

		TickInterval:      30 * time.Millisecond,
		RetryBackoff:      2000 * time.Millisecond,
		FPSInterval:       500 * time.Millisecond,
		StatusInterval:    1 * time.Second,
		DetectionInterval: 2 * time.Second,

		Listen:   DefaultListen,
		LogLevel: "info",
		Window:   true,
	}
}

// FromEnv overlays environment variables on top of c and returns the result.
func FromEnv(c Config) Config {
	if ip := os.Getenv("ROVER_IP"); ip != "" {
		c.RoverIP = ip
	}
	if src := os.Getenv("CAMRO_SOURCE"); src != "" {
		c.Source = src
	}
	if addr := os.Getenv("CAMRO_LISTEN"); addr != "" {
		c.Listen = addr
	}
	if lvl := os.Getenv("CAMRO_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	if dir := os.Getenv("CAMRO_MODELS"); dir != "" {
		c.ModelDir = dir
	}
	return c
}

// ControlURL returns the rover's control endpoint.
func (c Config) ControlURL() string {
	return fmt.Sprintf("http://%s:%s/control", c.RoverIP, c.ControlPort)
}

// StreamURL returns the rover's MJPEG stream endpoint.
func (c Config) StreamURL() string {
	return fmt.Sprintf("http://%s:%s/stream", c.RoverIP, c.StreamPort)
}

// ResolvedSource returns the source with SourceRover expanded to the stream URL.
func (c Config) ResolvedSource() string {
	if c.Source == SourceRover {
		return c.StreamURL()
	}
	return c.Source
}

// ModelPath joins name onto ModelDir unless name is already absolute.
func (c Config) ModelPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ModelDir, name)
}

// Validate reports impossible values as ErrConfig.
func (c Config) Validate() error {
	if c.RoverIP == "" {
		return fmt.Errorf("%w: rover IP is empty", ErrConfig)
	}
	if c.Source == "" {
		return fmt.Errorf("%w: video source is empty", ErrConfig)
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return fmt.Errorf("%w: display size %dx%d", ErrConfig, c.DisplayWidth, c.DisplayHeight)
	}
	if c.DetectWidth <= 0 || c.DetectHeight <= 0 {
		return fmt.Errorf("%w: detection size %dx%d", ErrConfig, c.DetectWidth, c.DetectHeight)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside 0..1", ErrConfig, c.Confidence)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("%w: NMS threshold %.2f outside 0..1", ErrConfig, c.NMSThreshold)
	}
	if c.ProcessEveryN < 1 {
		return fmt.Errorf("%w: process-every must be at least 1, got %d", ErrConfig, c.ProcessEveryN)
	}
	if c.TickInterval <= 0 || c.RetryBackoff <= 0 {
		return fmt.Errorf("%w: tick interval and retry backoff must be positive", ErrConfig)
	}
	if c.LinkTimeout <= 0 {
		return fmt.Errorf("%w: link timeout must be positive", ErrConfig)
	}
	return nil
}
