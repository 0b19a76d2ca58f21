package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

type App struct {
	Name       string
	Version    string
	GitHash    string
	LongName   string
	InstanceId string
}

type Config struct {
	App        App        `yaml:"-"`
	Debug      bool       `yaml:"debug,omitempty"`
	Recorder   Recorder   `yaml:"recorder,omitempty"`
	FFmpeg     FFmpeg     `yaml:"ffmpeg,omitempty"`
	PubSub     PubSub     `yaml:"pubsub,omitempty"`
	HTTP       HTTP       `yaml:"http,omitempty"`
	Prometheus Prometheus `yaml:"prometheus,omitempty"`
	Log        LogConfig  `yaml:"log"`
}

func (cfg *Config) GetDefaults() *Config {
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets the default values
func (cfg *Config) SetDefaults() {
	if cfg.App.Name == "" {
		var err error
		if cfg.App.Name, err = os.Executable(); err != nil {
			log.Error(err)
			cfg.App.Name = "unknown"
		}
	}

	cfg.Recorder.Directory = "./files"
	if dir := os.Getenv("RECORD_FILE_LOCATION_PATH"); dir != "" {
		cfg.Recorder.Directory = dir
	}
	cfg.Recorder.DirFileMode = "0700"
	cfg.Recorder.FileMode = "0600"
	cfg.Recorder.Width = 1280
	cfg.Recorder.Height = 720
	cfg.Recorder.FrameRate = 30
	cfg.Recorder.VideoBitrateKbps = 2000
	cfg.Recorder.AudioBitrateKbps = 128
	cfg.Recorder.MaxVideoInputs = 4
	cfg.Recorder.MixedMinDuration = 5 * time.Second
	cfg.Recorder.KeyframeInterval = 2 * time.Second
	cfg.Recorder.StaleTimeout = 2 * time.Hour
	cfg.Recorder.HealthCheckInterval = 30 * time.Second
	cfg.Recorder.RTPPortMin = 15000
	cfg.Recorder.RTPPortMax = 55000
	cfg.Recorder.PortRetries = 50
	cfg.FFmpeg = FFmpeg{
		Path:        "ffmpeg",
		ProbePath:   "ffprobe",
		LogLevel:    "info",
		QuitTimeout: 30 * time.Second,
		KillTimeout: 5 * time.Second,
	}
	cfg.PubSub.Channels = Channels{
		Subscribe: "to-" + cfg.App.Name,
		Publish:   "from-" + cfg.App.Name,
	}
	cfg.PubSub.Adapter = "redis"
	cfg.PubSub.Adapters = make(map[string]interface{})
	cfg.PubSub.Adapters["redis"] = &Redis{
		Address:  ":6379",
		Network:  "tcp",
		Password: "",
	}
	cfg.HTTP = HTTP{
		Enable: false,
		Port:   8080,
	}
	cfg.Prometheus = Prometheus{
		Enable:        false,
		ListenAddress: "127.0.0.1:3200",
	}
}

type Recorder struct {
	Directory        string `yaml:"directory,omitempty"`
	DirFileMode      string `yaml:"dirFileMode,omitempty"`
	FileMode         string `yaml:"fileMode,omitempty"`
	Width            int    `yaml:"width,omitempty"`
	Height           int    `yaml:"height,omitempty"`
	FrameRate        int    `yaml:"frameRate,omitempty"`
	VideoBitrateKbps int    `yaml:"videoBitrateKbps,omitempty"`
	AudioBitrateKbps int    `yaml:"audioBitrateKbps,omitempty"`

	// MaxVideoInputs caps how many video producers participate in the
	// mixed tiling; extra producers are ignored.
	MaxVideoInputs int `yaml:"maxVideoInputs,omitempty"`

	// MixedMinDuration holds a mixed stop request until the recording has
	// run at least this long, so an immediate stop does not produce an
	// empty file. Per-participant recordings stop immediately.
	MixedMinDuration time.Duration `yaml:"mixedMinDuration,omitempty"`

	KeyframeInterval    time.Duration `yaml:"keyframeInterval,omitempty"`
	StaleTimeout        time.Duration `yaml:"staleTimeout,omitempty"`
	HealthCheckInterval time.Duration `yaml:"healthCheckInterval,omitempty"`

	RTPPortMin  uint16 `yaml:"rtpPortMin,omitempty"`
	RTPPortMax  uint16 `yaml:"rtpPortMax,omitempty"`
	PortRetries int    `yaml:"portRetries,omitempty"`
}

type FFmpeg struct {
	Path      string `yaml:"path,omitempty"`
	ProbePath string `yaml:"probePath,omitempty"`
	LogLevel  string `yaml:"logLevel,omitempty"`

	// QuitTimeout bounds the wait after the graceful 'q' is written to the
	// muxer's stdin; KillTimeout bounds the wait after its inputs are
	// starved, before the process is signalled.
	QuitTimeout time.Duration `yaml:"quitTimeout,omitempty"`
	KillTimeout time.Duration `yaml:"killTimeout,omitempty"`
}

type Redis struct {
	Address  string `yaml:"address,omitempty"`
	Network  string `yaml:"network,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type PubSub struct {
	Channels Channels `yaml:"channels,omitempty"`
	Adapter  string   `yaml:"adapter,omitempty"`
	Adapters map[string]interface{}
}

type Channels struct {
	Subscribe string `yaml:"subscribe,omitempty"`
	Publish   string `yaml:"publish,omitempty"`
}

type HTTP struct {
	Enable bool `yaml:"enable,omitempty"`
	Port   int  `yaml:"port,omitempty"`
}

type Prometheus struct {
	Enable        bool   `yaml:"enable,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
