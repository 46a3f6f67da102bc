// Package conf loads and validates Ingen's engine configuration.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the root configuration for an Ingen engine process.
type Settings struct {
	Debug bool // true to enable verbose pre-process-thread logging

	Main struct {
		Name string // node name, used to tag notifications and metrics
		Log  LogConfig
	}

	Engine struct {
		SampleRate        int           // driver sample rate in Hz
		BlockSize         int           // driver frames-per-cycle
		DefaultInternalPoly int        // root graph's starting internal_poly
		MaxInternalPoly   int           // hard ceiling enforced by Graph.prepare_internal_poly
		WorkerThreads     int           // audio worker pool size; 0 = runtime.NumCPU()-1
		UndoStackDepth    int           // maximum number of undo entries retained
		AtomicBundleTimeoutCycles int   // cycles to wait for an atomic bundle before giving up
		EventRingCapacity int           // capacity of the pre-process<->audio SPSC rings
	}

	Buffers struct {
		SmallBufferSize   int // bytes; small tier ceiling
		MediumBufferSize  int // bytes; medium tier ceiling
		LargeBufferSize   int // bytes; large tier ceiling
		MaxBuffersPerSize int // retained free-list length per tier
	}

	Driver struct {
		Type       string // "portaudio" or "null"
		InputName  string // substring match against device name; "" = system default
		OutputName string
	}

	MIDI struct {
		Enabled bool
		Device  string
	}

	LV2 struct {
		BundlePath []string // search path for LV2 bundles (black-box host contract, see spec.md §6)
	}

	HTTP struct {
		Enabled bool
		Listen  string // address for the status/metrics server
	}

	Metrics struct {
		Enabled  bool
		Interval time.Duration
	}
}

// LogConfig mirrors the teacher's per-output log configuration.
type LogConfig struct {
	Enabled  bool
	Path     string
	Rotation RotationType
	MaxSize  int64
}

// RotationType enumerates supported log rotation strategies.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from defaults, file and environment, in that
// precedence order (lowest to highest), the way the teacher's conf.Load does.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("ingen")
	viper.AutomaticEnv()

	configPaths, err := DefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		return createDefaultConfig(configPaths[0])
	}

	return nil
}

// createDefaultConfig writes the embedded default config.yaml to the first
// default config path, the way the teacher bootstraps a fresh install.
func createDefaultConfig(dir string) error {
	defaultConfig, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // matches teacher's permissive default
		return fmt.Errorf("error creating config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, defaultConfig, 0o644); err != nil { //nolint:gosec // matches teacher's permissive default
		return fmt.Errorf("error writing default config: %w", err)
	}

	return initViper()
}

// Setting returns the currently loaded settings instance, or nil if Load
// has not been called yet.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
