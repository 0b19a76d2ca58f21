package recording

import (
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

func TestKeyframePumpRequestsImmediatelyAndPeriodically(t *testing.T) {
	video := &fakeConsumer{id: "c-video", kind: sfu.MediaKindVideo}
	audio := &fakeConsumer{id: "c-audio", kind: sfu.MediaKindAudio}
	entry := log.WithField("recording", "test")

	stop := startKeyframePump([]sfu.Consumer{video, audio}, 10*time.Millisecond, entry)
	defer stop()

	// the first request happens before the pump returns
	require.GreaterOrEqual(t, atomic.LoadInt32(&video.keyframes), int32(1))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&video.keyframes) >= 3
	}, time.Second, 5*time.Millisecond, "pump should keep requesting keyframes")

	assert.Equal(t, int32(0), atomic.LoadInt32(&audio.keyframes),
		"audio consumers never receive keyframe requests")
}

func TestKeyframePumpStops(t *testing.T) {
	video := &fakeConsumer{id: "c-video", kind: sfu.MediaKindVideo}
	entry := log.WithField("recording", "test")

	stop := startKeyframePump([]sfu.Consumer{video}, 5*time.Millisecond, entry)
	stop()
	stop() // idempotent

	time.Sleep(20 * time.Millisecond)
	n := atomic.LoadInt32(&video.keyframes)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&video.keyframes), "no requests after stop")
}

func TestKeyframePumpNoVideoConsumers(t *testing.T) {
	audio := &fakeConsumer{id: "c-audio", kind: sfu.MediaKindAudio}
	entry := log.WithField("recording", "test")

	stop := startKeyframePump([]sfu.Consumer{audio}, 5*time.Millisecond, entry)
	stop()
}
