package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleroom/sfu-recorder/internal/config"
	"github.com/teleroom/sfu-recorder/internal/pubsub"
	"github.com/teleroom/sfu-recorder/internal/pubsub/events"
	"github.com/teleroom/sfu-recorder/internal/recording"
	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// Mock PubSub
type mockPubSub struct {
	publishChan chan []byte
}

func (p *mockPubSub) Publish(channel string, msg []byte) error {
	p.publishChan <- msg
	return nil
}
func (p *mockPubSub) Subscribe(channel string, handler pubsub.PubSubHandler, onStart func() error) error {
	return nil
}
func (p *mockPubSub) Check() error { return nil }
func (p *mockPubSub) Close() error { return nil }

var _ pubsub.PubSub = (*mockPubSub)(nil)

// Mock router provider with no rooms
type emptyProvider struct{}

func (emptyProvider) Router(roomId string) (sfu.Router, bool) { return nil, false }

var _ sfu.RouterProvider = emptyProvider{}

func newTestServer(t *testing.T) (*Server, *mockPubSub) {
	t.Helper()

	cfg := (&config.Config{App: config.App{Name: "sfu-recorder", Version: "test", InstanceId: "instance-1"}}).GetDefaults()
	cfg.Recorder.Directory = t.TempDir()

	ps := &mockPubSub{publishChan: make(chan []byte, 16)}
	svc := recording.NewService(cfg.Recorder, cfg.FFmpeg)
	return NewServer(cfg, ps, svc, emptyProvider{}), ps
}

func nextMessage(t *testing.T, ps *mockPubSub) map[string]interface{} {
	t.Helper()
	select {
	case raw := <-ps.publishChan:
		m := make(map[string]interface{})
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive a response from the server")
		return nil
	}
}

func TestStartRecordingWithoutRouter(t *testing.T) {
	sv, ps := newTestServer(t)

	sv.HandlePubSub(context.Background(), []byte(`{
		"id": "startMixedRecording",
		"roomId": "room-without-router",
		"userId": "u-1"
	}`))

	m := nextMessage(t, ps)
	assert.Equal(t, "startMixedRecordingResponse", m["id"])
	assert.Equal(t, "failed", m["status"])
	assert.Contains(t, m["error"], "router is not ready")
}

func TestStopUnknownRecording(t *testing.T) {
	sv, ps := newTestServer(t)

	sv.HandlePubSub(context.Background(), []byte(`{
		"id": "stopMixedRecording",
		"recordingId": "nope"
	}`))

	// stopping state change first, then the failure
	m := nextMessage(t, ps)
	assert.Equal(t, events.RecordingStateChangedKey, m["id"])
	assert.Equal(t, events.StateStopping, m["state"])
	assert.Equal(t, "nope", m["recordingId"])

	m = nextMessage(t, ps)
	assert.Equal(t, "stopMixedRecordingResponse", m["id"])
	assert.Equal(t, "failed", m["status"])
	assert.Contains(t, m["error"], "not found")
}

func TestRecordingStatusUnknown(t *testing.T) {
	sv, ps := newTestServer(t)

	sv.HandlePubSub(context.Background(), []byte(`{
		"id": "recordingStatus",
		"recordingId": "nope"
	}`))

	m := nextMessage(t, ps)
	assert.Equal(t, events.RecordingStatusResponseKey, m["id"])
	assert.Equal(t, false, m["active"])
}

func TestGetRecorderStatus(t *testing.T) {
	sv, ps := newTestServer(t)

	sv.HandlePubSub(context.Background(), []byte(`{"id": "getRecorderStatus"}`))

	m := nextMessage(t, ps)
	assert.Equal(t, events.RecorderStatusKey, m["id"])
	assert.Equal(t, "test", m["version"])
	assert.Equal(t, "instance-1", m["instanceId"])
}

func TestInvalidMessageIsIgnored(t *testing.T) {
	sv, ps := newTestServer(t)

	sv.HandlePubSub(context.Background(), []byte(`{"id": "unknownOp"}`))
	sv.HandlePubSub(context.Background(), []byte("garbage"))

	select {
	case msg := <-ps.publishChan:
		t.Fatalf("unexpected publish: %s", msg)
	case <-time.After(200 * time.Millisecond):
	}
}
