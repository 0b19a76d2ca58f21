package recording

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// ---- fake SFU ----

type fakeProducer struct {
	id     string
	peer   string
	kind   sfu.MediaKind
	closed bool
}

var _ sfu.Producer = (*fakeProducer)(nil)

func (p *fakeProducer) Id() string          { return p.id }
func (p *fakeProducer) Kind() sfu.MediaKind { return p.kind }
func (p *fakeProducer) Peer() string        { return p.peer }
func (p *fakeProducer) Closed() bool        { return p.closed }

type fakeConsumer struct {
	id     string
	kind   sfu.MediaKind
	params sfu.RtpParameters

	mu              sync.Mutex
	resumed         bool
	closed          bool
	keyframes       int32
	onProducerClose func()
}

var _ sfu.Consumer = (*fakeConsumer)(nil)

func (c *fakeConsumer) Id() string                    { return c.id }
func (c *fakeConsumer) Kind() sfu.MediaKind           { return c.kind }
func (c *fakeConsumer) RtpParameters() sfu.RtpParameters { return c.params }

func (c *fakeConsumer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed = true
	return nil
}

func (c *fakeConsumer) RequestKeyFrame() error {
	atomic.AddInt32(&c.keyframes, 1)
	return nil
}

func (c *fakeConsumer) OnProducerClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProducerClose = fn
}

func (c *fakeConsumer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConsumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConsumer) fireProducerClose() {
	c.mu.Lock()
	fn := c.onProducerClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeConsumer) isResumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed
}

type fakeTransport struct {
	id         string
	consumeErr error
	connectErr error

	mu        sync.Mutex
	connected *sfu.TransportConnectOptions
	closed    bool
	consumer  *fakeConsumer
}

var _ sfu.PlainTransport = (*fakeTransport)(nil)

func (t *fakeTransport) Id() string { return t.id }

func (t *fakeTransport) Connect(opts sfu.TransportConnectOptions) error {
	if t.connectErr != nil {
		return t.connectErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = &opts
	return nil
}

func (t *fakeTransport) Consume(producerId string, caps sfu.RtpCapabilities, paused bool) (sfu.Consumer, error) {
	if t.consumeErr != nil {
		return nil, t.consumeErr
	}
	if !paused {
		return nil, fmt.Errorf("recording consumers must start paused")
	}

	kind := sfu.MediaKindAudio
	params := opusConsumerParams()
	if producerKindOf(producerId) == sfu.MediaKindVideo {
		kind = sfu.MediaKindVideo
		params = vp8ConsumerParams()
	}

	c := &fakeConsumer{
		id:     "consumer-" + producerId,
		kind:   kind,
		params: params,
	}
	t.mu.Lock()
	t.consumer = c
	t.mu.Unlock()
	return c, nil
}

func (t *fakeTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Producer ids in tests are prefixed "v-" or "a-" so the fake transport can
// hand back kind-appropriate consumer parameters.
func producerKindOf(producerId string) sfu.MediaKind {
	if len(producerId) > 0 && producerId[0] == 'v' {
		return sfu.MediaKindVideo
	}
	return sfu.MediaKindAudio
}

// The consumer-assigned payload types deliberately differ from anything a
// producer would use, mirroring the SFU renumbering payload types for the
// consumer side.
func vp8ConsumerParams() sfu.RtpParameters {
	return sfu.RtpParameters{
		Codecs: []*sfu.RtpCodecParameters{
			{
				MimeType:    "video/VP8",
				PayloadType: 101,
				ClockRate:   90000,
				Parameters: map[string]interface{}{
					"x-google-start-bitrate": 1000,
				},
			},
		},
	}
}

func opusConsumerParams() sfu.RtpParameters {
	return sfu.RtpParameters{
		Codecs: []*sfu.RtpCodecParameters{
			{
				MimeType:    "audio/opus",
				PayloadType: 100,
				ClockRate:   48000,
				Channels:    2,
				Parameters: map[string]interface{}{
					"minptime":     10,
					"useinbandfec": 1,
				},
			},
		},
	}
}

type fakeRouter struct {
	id            string
	closed        bool
	noCaps        bool
	producers     []sfu.Producer
	cannotConsume map[string]bool
	transportErr  error
	consumeErr    error

	mu         sync.Mutex
	transports []*fakeTransport
}

var _ sfu.Router = (*fakeRouter)(nil)

func (r *fakeRouter) Id() string   { return r.id }
func (r *fakeRouter) Closed() bool { return r.closed }

func (r *fakeRouter) RtpCapabilities() sfu.RtpCapabilities {
	if r.noCaps {
		return sfu.RtpCapabilities{}
	}
	return sfu.RecorderRtpCapabilities()
}

func (r *fakeRouter) CanConsume(producerId string, caps sfu.RtpCapabilities) bool {
	return !r.cannotConsume[producerId]
}

func (r *fakeRouter) CreatePlainTransport(opts sfu.PlainTransportOptions) (sfu.PlainTransport, error) {
	if r.transportErr != nil {
		return nil, r.transportErr
	}
	if opts.RtcpMux || opts.Comedia {
		return nil, fmt.Errorf("recorder transports must be non-mux and non-comedia")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTransport{
		id:         fmt.Sprintf("transport-%d", len(r.transports)),
		consumeErr: r.consumeErr,
	}
	r.transports = append(r.transports, t)
	return t, nil
}

func (r *fakeRouter) Producers() []sfu.Producer { return r.producers }

// ---- fake muxer ----

type fakeMuxer struct {
	args    []string
	outFile string

	startErr error
	onFatal  func(error)

	started chan struct{}
	exited  chan struct{}

	mu          sync.Mutex
	startedAt   time.Time
	stopCalled  bool
	exitedOnce  sync.Once
}

var _ Muxer = (*fakeMuxer)(nil)

func newFakeMuxer(args []string) *fakeMuxer {
	return &fakeMuxer{
		args:    args,
		outFile: args[len(args)-1],
		started: make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (m *fakeMuxer) OnFatal(fn func(error)) { m.onFatal = fn }

// Start behaves like a muxer that begins emitting frames immediately: it
// touches the output file and closes the started channel.
func (m *fakeMuxer) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	if err := os.WriteFile(m.outFile, nil, 0600); err != nil {
		return err
	}
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()
	close(m.started)
	return nil
}

func (m *fakeMuxer) Started() <-chan struct{} { return m.started }

func (m *fakeMuxer) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

func (m *fakeMuxer) Exited() <-chan struct{} { return m.exited }

func (m *fakeMuxer) Err() error { return nil }

func (m *fakeMuxer) Stop(ctx context.Context, starve func()) error {
	m.mu.Lock()
	m.stopCalled = true
	m.mu.Unlock()
	m.exitedOnce.Do(func() { close(m.exited) })
	return nil
}

func (m *fakeMuxer) wasStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalled
}

func (m *fakeMuxer) crash() {
	m.exitedOnce.Do(func() { close(m.exited) })
}

// ---- test service harness ----

type muxerRecorder struct {
	mu     sync.Mutex
	muxers []*fakeMuxer
}

func (r *muxerRecorder) add(m *fakeMuxer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muxers = append(r.muxers, m)
}

func (r *muxerRecorder) all() []*fakeMuxer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*fakeMuxer(nil), r.muxers...)
}

func newTestService(dir string) (*Service, *muxerRecorder) {
	s := NewService(testRecorderConfig(dir), testFFmpegConfig())
	mr := &muxerRecorder{}
	s.newMuxer = func(args []string, fields log.Fields) Muxer {
		m := newFakeMuxer(args)
		mr.add(m)
		return m
	}
	s.probe = func(ctx context.Context, file string) (time.Duration, error) {
		return 7 * time.Second, nil
	}
	return s, mr
}
