package recording

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

func testBinder() *Binder {
	return &Binder{
		Ports: NewPortAllocator(42000, 42100, 50),
		Caps:  sfu.RecorderRtpCapabilities(),
	}
}

func TestBinderBindVideo(t *testing.T) {
	router := &fakeRouter{id: "router-1"}
	producer := &fakeProducer{id: "v-cam1", peer: "peer-1", kind: sfu.MediaKindVideo}
	b := testBinder()

	binding, err := b.Bind(router, producer)
	require.NoError(t, err)
	defer binding.Close()

	// consumer-side codec, not a producer-side constant
	assert.Equal(t, byte(101), binding.Codec.Payload())
	assert.Equal(t, "VP8/90000", binding.Codec.RtpMap())
	assert.Equal(t, sfu.MediaKindVideo, binding.Codec.Media())

	require.Len(t, router.transports, 1)
	tr := router.transports[0]
	require.NotNil(t, tr.connected)
	assert.Equal(t, "127.0.0.1", tr.connected.Ip)
	assert.Equal(t, binding.Port, tr.connected.Port)
	assert.Equal(t, binding.Port+1, tr.connected.RtcpPort)
}

func TestBinderSkipsUnconsumableProducer(t *testing.T) {
	router := &fakeRouter{
		id:            "router-1",
		cannotConsume: map[string]bool{"v-screen": true},
	}
	producer := &fakeProducer{id: "v-screen", peer: "peer-1", kind: sfu.MediaKindVideo}

	_, err := testBinder().Bind(router, producer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRouterCannotConsume))
	assert.Empty(t, router.transports, "no transport should be created")
}

func TestBinderClosesTransportOnConsumeFailure(t *testing.T) {
	router := &fakeRouter{id: "router-1", consumeErr: fmt.Errorf("producer gone")}
	producer := &fakeProducer{id: "v-cam1", peer: "peer-1", kind: sfu.MediaKindVideo}

	_, err := testBinder().Bind(router, producer)
	require.Error(t, err)

	require.Len(t, router.transports, 1)
	assert.True(t, router.transports[0].closed, "partially created transport must be closed")
}

func TestBinderFailsOnTransportCreate(t *testing.T) {
	router := &fakeRouter{id: "router-1", transportErr: fmt.Errorf("worker died")}
	producer := &fakeProducer{id: "v-cam1", peer: "peer-1", kind: sfu.MediaKindVideo}

	_, err := testBinder().Bind(router, producer)
	require.Error(t, err)
}

func TestBinderDistinctPortsPerBinding(t *testing.T) {
	router := &fakeRouter{id: "router-1"}
	b := testBinder()

	video, err := b.Bind(router, &fakeProducer{id: "v-cam", peer: "p", kind: sfu.MediaKindVideo})
	require.NoError(t, err)
	defer video.Close()

	audio, err := b.Bind(router, &fakeProducer{id: "a-mic", peer: "p", kind: sfu.MediaKindAudio})
	require.NoError(t, err)
	defer audio.Close()

	assert.NotEqual(t, video.Port, audio.Port)
}
