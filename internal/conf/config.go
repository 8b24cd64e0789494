// Package conf loads the knobs the AAEQ core reads at startup: where the
// control API and ANP listeners bind, the DSP pipeline's defaults, log
// rotation policy, and where per-node identity/profile state lives on disk.
// File-based music-library discovery, the GUI's own preference panes, and
// the tray icon remain external collaborators; this package only owns what
// internal/* packages actually read.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings is the root configuration tree, unmarshaled from YAML by Load.
type Settings struct {
	Debug bool

	Main struct {
		NodeName string // friendly name advertised over mDNS and in ANP capabilities
		Log      LogConfig
	}

	Control struct {
		Listen string // loopback-only bind address for the local HTTP control API, e.g. "127.0.0.1:8721"
	}

	ANP struct {
		Listen          string // UDP bind address for the RTP receiver / WebSocket control channel
		AdvertiseName   string // mDNS service instance name; defaults to Main.NodeName
		NodeUUIDPath    string // where the persisted node_uuid is stored
		DiscoveryCacheS int    // discovery result cache TTL in seconds (default 30)
	}

	DLNA struct {
		Listen string // local HTTP bind address the DLNA pull/push sink serves stream.wav and status from
	}

	DSP struct {
		HeadroomDB       float64 // default pre-EQ attenuation
		ClipDetection    bool
		DefaultBufferMs  int // default OutputConfig.BufferMs when a sink doesn't specify one
		DitherMode       string
		NoiseShapeMode   string
		TargetBitDepth   int
	}

	Profiles struct {
		StoragePath string // directory of EQ preset YAML files (internal/profile.Store)
		Default     string // name of the always-present, non-deletable default profile
	}
}

// LogConfig mirrors lumberjack's rotation knobs plus an enable flag, in the
// same shape internal/logging expects.
type LogConfig struct {
	Enabled     bool
	Path        string
	Rotation    RotationType
	MaxSize     int64
	RotationDay time.Weekday
}

// RotationType selects how NewFileLogger rotates a log file.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	current *Settings
	mu      sync.RWMutex
)

// Load reads configuration from (in order of precedence) environment
// variables prefixed AAEQ_, a config.yaml on the search path, and the
// built-in defaults below, then validates and stores the result.
func Load() (*Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	v := viper.New()
	v.SetEnvPrefix("AAEQ")
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, p := range defaultConfigPaths() {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("conf: reading config file: %w", err)
		}
		// no config file on disk: defaults + env only, which is a valid
		// way to run the daemon in a container.
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("conf: unmarshaling config: %w", err)
	}

	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("conf: invalid configuration: %w", err)
	}

	current = settings
	return settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("main.nodename", "aaeq-node")
	v.SetDefault("main.log.enabled", true)
	v.SetDefault("main.log.path", "logs/aaeq.log")
	v.SetDefault("main.log.rotation", string(RotationSize))
	v.SetDefault("main.log.maxsize", int64(10*1024*1024))

	v.SetDefault("control.listen", "127.0.0.1:8721")

	v.SetDefault("anp.listen", "0.0.0.0:5353")
	v.SetDefault("anp.nodeuuidpath", "aaeq/node_uuid")
	v.SetDefault("anp.discoverycaches", 30)

	v.SetDefault("dlna.listen", "0.0.0.0:8722")

	v.SetDefault("dsp.headroomdb", -3.0)
	v.SetDefault("dsp.clipdetection", true)
	v.SetDefault("dsp.defaultbufferms", 200)
	v.SetDefault("dsp.dithermode", "triangular")
	v.SetDefault("dsp.noiseshapemode", "none")
	v.SetDefault("dsp.targetbitdepth", 16)

	v.SetDefault("profiles.storagepath", "aaeq/profiles")
	v.SetDefault("profiles.default", "Default")
}

// validate rejects configuration that would violate invariants documented
// elsewhere (OutputConfig.buffer_ms range, target bit depth range).
func validate(s *Settings) error {
	if s.DSP.DefaultBufferMs < 50 || s.DSP.DefaultBufferMs > 500 {
		return fmt.Errorf("dsp.defaultbufferms %d outside [50, 500]", s.DSP.DefaultBufferMs)
	}
	if s.DSP.TargetBitDepth < 8 || s.DSP.TargetBitDepth > 24 {
		return fmt.Errorf("dsp.targetbitdepth %d outside [8, 24]", s.DSP.TargetBitDepth)
	}
	if s.ANP.DiscoveryCacheS <= 0 {
		return fmt.Errorf("anp.discoverycaches must be positive, got %d", s.ANP.DiscoveryCacheS)
	}
	if s.Profiles.Default == "" {
		return fmt.Errorf("profiles.default must not be empty")
	}
	return nil
}

// defaultConfigPaths returns OS-appropriate search directories for config.yaml.
func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "aaeq"))
	}
	paths = append(paths, "/etc/aaeq")
	return paths
}

// Get returns the process-wide settings instance loaded by Load. Packages
// call this instead of holding their own reference so a future config
// reload is observed everywhere.
func Get() *Settings {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set installs settings directly, bypassing Load. Used by tests and by
// callers that construct Settings programmatically.
func Set(s *Settings) {
	mu.Lock()
	defer mu.Unlock()
	current = s
}
