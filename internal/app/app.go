package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/teleroom/sfu-recorder/internal"
	"github.com/teleroom/sfu-recorder/internal/appstats"
	"github.com/teleroom/sfu-recorder/internal/config"
	"github.com/teleroom/sfu-recorder/internal/pubsub"
	"github.com/teleroom/sfu-recorder/internal/recording"
	"github.com/teleroom/sfu-recorder/internal/server"
	"github.com/teleroom/sfu-recorder/internal/sfu/mediasoup"
)

var (
	app config.App

	flags struct {
		config  string
		dump    string
		debug   bool
		help    bool
		version bool
	}

	cfg *config.Config
	ps  pubsub.PubSub
	sv  *server.Server
)

// Main is the process entry point, called from cmd/sfu-recorder.
func Main() {
	app.Name = internal.AppName
	app.Version = internal.AppVersion
	app.LongName = fmt.Sprintf("%s %s", app.Name, app.Version)
	app.InstanceId = uuid.New().String()

	flag.StringVarP(&flags.config, "config", "c", flags.config, "load configuration file")
	flag.StringVar(&flags.dump, "dump", "", "print config value (e.g. 'recorder.directory')")
	flag.BoolVarP(&flags.debug, "debug", "d", flags.debug, "enable debug log")
	flag.BoolVarP(&flags.help, "help", "h", flags.help, "print help")
	flag.BoolVarP(&flags.version, "version", "v", flags.version, "print version")
	flag.Parse()

	if flags.help {
		fmt.Printf("%s\n\n", app.LongName)
		flag.PrintDefaults()
		shutdown(0)
	}

	if flags.version {
		fmt.Println(app.LongName)
		shutdown(0)
	}

	if flags.dump != "" {
		log.SetLevel(log.FatalLevel)
		cfg = initConfig()
		loadConfig()
		dumpConfig()
	}

	Init()
	Run()
}

func Init() {
	cfg = initConfig()
	log.Infof("Starting %s PID: %d", app.Name, os.Getpid())
	loadConfig()
	configureLog()
	sigintHandler()
	sighupHandler()
}

func Run() {
	appstats.Init()
	appstats.ServePromMetrics(cfg.Prometheus)

	ps = pubsub.NewPubSub(cfg.PubSub)

	if err := ps.Check(); err != nil {
		log.Fatalf("failed to connect to pubsub: %v", err)
	}
	appstats.SetComponentHealth("pubsub", true)

	if err := recording.EnsureDirWritable(cfg.Recorder.Directory, 0700); err != nil {
		log.Fatalf("failed to check record directory: %v", err)
	}

	svc := recording.NewService(cfg.Recorder, cfg.FFmpeg)
	svc.StartHealthCheck(context.Background())

	routers, err := mediasoup.NewProvider()
	if err != nil {
		log.Fatalf("failed to start mediasoup worker: %v", err)
	}
	appstats.SetComponentHealth("mediasoup", true)

	sv = server.NewServer(cfg, ps, svc, routers)

	if cfg.HTTP.Enable {
		hs := server.NewHTTPServer(cfg, svc.Registry())
		hs.Serve()
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("failed to notify readiness to systemd: %v", err)
	}

	if err := ps.Subscribe(cfg.PubSub.Channels.Subscribe, sv.HandlePubSub, sv.OnStart); err != nil {
		log.Fatalf("failed to subscribe to pubsub %s: %s", cfg.PubSub.Channels.Subscribe, err)
	}
}

func shutdown(code int) {
	if sv != nil {
		if err := sv.Close(); err != nil {
			log.Errorf("failed to close server: %s", err)
		}
	}

	if ps != nil {
		if err := ps.Close(); err != nil {
			log.Errorf("failed to close pubsub: %s", err)
		}
	}

	os.Exit(code)
}

func sighupHandler() {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for {
			<-sighup
			log.Debug("reloading config...")
			loadConfig()
			configureLog()
		}
	}()
}

func sigintHandler() {
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt)
	go func() {
		<-sigint
		shutdown(0)
	}()
}
