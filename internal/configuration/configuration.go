package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keylight/keylightd/version"
	"gopkg.in/alecthomas/kingpin.v2"
)

type Configuration struct {
	Debug       bool
	ECPath      string
	MetricsAddr string
	DeviceNames []string
	Controller  ControllerConfiguration
}

type ControllerConfiguration struct {
	Brightness int
	Timeout    time.Duration
	PowerLED   bool
	Persist    bool
}

func GetConfigFromArgs(args []string) (Configuration, error) {
	var cfg Configuration

	a := kingpin.New(filepath.Base(os.Args[0]), "keylightd")
	a.Version(version.BuildVersion)
	a.HelpFlag.Short('h')
	a.VersionFlag.Short('v')
	a.Flag("debug", "Log debug messages").Short('d').Default("false").BoolVar(&cfg.Debug)
	a.Flag("brightness", "Backlight brightness while active (0-100)").Short('b').Default("30").IntVar(&cfg.Controller.Brightness)
	a.Flag("timeout", "Idle time before the backlight fades out").Short('t').Default("10s").DurationVar(&cfg.Controller.Timeout)
	a.Flag("power", "Also control the power LED in the fingerprint module").Default("false").BoolVar(&cfg.Controller.PowerLED)
	a.Flag("persist", "Adopt the live brightness as the new target while active").Default("false").BoolVar(&cfg.Controller.Persist)
	a.Flag("device", "Additional input device name to listen on (repeatable)").StringsVar(&cfg.DeviceNames)
	a.Flag("ec-path", "Path to the embedded controller device").Default("/dev/cros_ec").StringVar(&cfg.ECPath)
	a.Flag("metrics-addr", "Prometheus metrics listener address (empty: no listener)").Default("").StringVar(&cfg.MetricsAddr)

	if _, err := a.Parse(args); err != nil {
		return cfg, fmt.Errorf("invalid command line arguments: %w", err)
	}

	if cfg.Controller.Brightness < 0 || cfg.Controller.Brightness > 100 {
		return cfg, fmt.Errorf("invalid brightness %d (valid range: 0-100)", cfg.Controller.Brightness)
	}
	if cfg.Controller.Timeout <= 0 {
		return cfg, fmt.Errorf("invalid timeout %s (must be positive)", cfg.Controller.Timeout)
	}
	return cfg, nil
}
