package ffmpeg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/config"
)

func TestIsProgressLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"frame=  123 fps= 30 q=23.0 size=    1024kB time=00:00:04.10", true},
		{"size=     256kB time=00:00:02.00 bitrate= 128.0kbits/s", true},
		{"  frame=1 fps=0.0", true},
		{"Input #0, sdp, from '/rec/sdp/1/v-a.sdp':", false},
		{"Stream mapping:", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isProgressLine(tt.line), "line %q", tt.line)
	}
}

func TestIsErrorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"[rtp @ 0x1] Error decoding packet", true},
		{"[sdp @ 0x2] Invalid argument", true},
		{"[vost#0:0 @ 0x3] dropping frame 42 from stream 0", true},
		{"frame=  123 fps= 30", false},
		{"Press [q] to stop, [?] for help", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isErrorLine(tt.line), "line %q", tt.line)
	}
}

// A process that exits on its own is reaped within the initial grace window
// and Stop returns without escalating.
func TestStopAfterProcessExited(t *testing.T) {
	cfg := config.FFmpeg{
		Path:        "true",
		QuitTimeout: time.Second,
		KillTimeout: time.Second,
	}

	p := New(cfg, nil, log.Fields{"recording": "test"})
	require.NoError(t, p.Start())

	select {
	case <-p.Exited():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit")
	}

	starved := false
	err := p.Stop(context.Background(), func() { starved = true })
	assert.NoError(t, err)
	assert.False(t, starved, "an exited process must not trigger input starvation")
}

func TestStartFailsForMissingBinary(t *testing.T) {
	cfg := config.FFmpeg{Path: "/nonexistent/muxer-binary"}

	p := New(cfg, []string{"-version"}, log.Fields{})
	assert.Error(t, p.Start())
}
