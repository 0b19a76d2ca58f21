package config

import (
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	cfg := (&Config{App: App{Name: "sfu-recorder"}}).GetDefaults()

	if cfg.Recorder.Directory != "./files" {
		t.Errorf("Recorder.Directory = %q, want ./files", cfg.Recorder.Directory)
	}
	if cfg.Recorder.Width != 1280 || cfg.Recorder.Height != 720 {
		t.Errorf("default frame size = %dx%d, want 1280x720", cfg.Recorder.Width, cfg.Recorder.Height)
	}
	if cfg.Recorder.MaxVideoInputs != 4 {
		t.Errorf("MaxVideoInputs = %d, want 4", cfg.Recorder.MaxVideoInputs)
	}
	if cfg.Recorder.MixedMinDuration != 5*time.Second {
		t.Errorf("MixedMinDuration = %v, want 5s", cfg.Recorder.MixedMinDuration)
	}
	if cfg.Recorder.StaleTimeout != 2*time.Hour {
		t.Errorf("StaleTimeout = %v, want 2h", cfg.Recorder.StaleTimeout)
	}
	if cfg.Recorder.RTPPortMin != 15000 || cfg.Recorder.RTPPortMax != 55000 {
		t.Errorf("port range = [%d, %d], want [15000, 55000]",
			cfg.Recorder.RTPPortMin, cfg.Recorder.RTPPortMax)
	}
	if cfg.FFmpeg.Path != "ffmpeg" || cfg.FFmpeg.ProbePath != "ffprobe" {
		t.Errorf("ffmpeg paths = %q/%q", cfg.FFmpeg.Path, cfg.FFmpeg.ProbePath)
	}
	if cfg.PubSub.Channels.Subscribe != "to-sfu-recorder" {
		t.Errorf("subscribe channel = %q", cfg.PubSub.Channels.Subscribe)
	}
	if cfg.PubSub.Adapter != "redis" {
		t.Errorf("pubsub adapter = %q, want redis", cfg.PubSub.Adapter)
	}
}

func TestRecordDirectoryFromEnvironment(t *testing.T) {
	t.Setenv("RECORD_FILE_LOCATION_PATH", "/var/recordings")

	cfg := (&Config{App: App{Name: "sfu-recorder"}}).GetDefaults()
	if cfg.Recorder.Directory != "/var/recordings" {
		t.Errorf("Recorder.Directory = %q, want /var/recordings", cfg.Recorder.Directory)
	}
}
