// Package mediasoup binds the recorder's SFU interfaces to a mediasoup
// worker. The co-located room/signaling layer registers its routers and
// producers here; the orchestrator only ever sees the sfu interfaces.
package mediasoup

import (
	"encoding/json"
	"sync"

	"github.com/AlekSi/pointer"
	msoup "github.com/jiyeyuran/mediasoup-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

type Provider struct {
	worker *msoup.Worker

	mu      sync.RWMutex
	routers map[string]*Router
}

func NewProvider() (*Provider, error) {
	worker, err := msoup.NewWorker()
	if err != nil {
		return nil, errors.Wrap(err, "failed to start mediasoup worker")
	}

	return &Provider{
		worker:  worker,
		routers: make(map[string]*Router),
	}, nil
}

var _ sfu.RouterProvider = (*Provider)(nil)

func (p *Provider) Router(roomId string) (sfu.Router, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.routers[roomId]
	return r, ok
}

// GetOrCreateRouter is called by the room layer when a session opens. The
// router's media codecs are the recorder's capability set, so everything a
// participant produces is consumable for recording.
func (p *Provider) GetOrCreateRouter(roomId string) (*Router, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.routers[roomId]; ok {
		return r, nil
	}

	codecs, err := mediaCodecs(sfu.RecorderRtpCapabilities())
	if err != nil {
		return nil, err
	}

	router, err := p.worker.CreateRouter(msoup.RouterOptions{MediaCodecs: codecs})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create router for room %s", roomId)
	}

	r := &Router{
		roomId:    roomId,
		router:    router,
		producers: make(map[string]*producer),
	}
	p.routers[roomId] = r

	log.WithField("room", roomId).Debug("created mediasoup router")
	return r, nil
}

func (p *Provider) CloseRoom(roomId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.routers[roomId]; ok {
		r.router.Close()
		delete(p.routers, roomId)
	}
}

type Router struct {
	roomId string
	router *msoup.Router

	mu        sync.RWMutex
	producers map[string]*producer
}

var _ sfu.Router = (*Router)(nil)

// RegisterProducer makes a participant's producer visible to the recorder.
func (r *Router) RegisterProducer(peerId string, p *msoup.Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.Id()] = &producer{peerId: peerId, producer: p}
}

func (r *Router) UnregisterProducer(producerId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, producerId)
}

func (r *Router) Id() string { return r.router.Id() }

func (r *Router) Closed() bool { return r.router.Closed() }

func (r *Router) RtpCapabilities() sfu.RtpCapabilities {
	var caps sfu.RtpCapabilities
	if err := convert(r.router.RtpCapabilities(), &caps); err != nil {
		log.Errorf("failed to convert router capabilities: %v", err)
	}
	return caps
}

func (r *Router) CanConsume(producerId string, caps sfu.RtpCapabilities) bool {
	var msCaps msoup.RtpCapabilities
	if err := convert(caps, &msCaps); err != nil {
		log.Errorf("failed to convert recorder capabilities: %v", err)
		return false
	}
	return r.router.CanConsume(producerId, msCaps)
}

func (r *Router) CreatePlainTransport(opts sfu.PlainTransportOptions) (sfu.PlainTransport, error) {
	t, err := r.router.CreatePlainTransport(msoup.PlainTransportOptions{
		ListenIp: msoup.TransportListenIp{Ip: opts.ListenIp},
		RtcpMux:  pointer.ToBool(opts.RtcpMux),
		Comedia:  opts.Comedia,
	})
	if err != nil {
		return nil, err
	}
	return &transport{transport: t}, nil
}

func (r *Router) Producers() []sfu.Producer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]sfu.Producer, 0, len(r.producers))
	for _, p := range r.producers {
		out = append(out, p)
	}
	return out
}

type producer struct {
	peerId   string
	producer *msoup.Producer
}

var _ sfu.Producer = (*producer)(nil)

func (p *producer) Id() string          { return p.producer.Id() }
func (p *producer) Kind() sfu.MediaKind { return sfu.MediaKind(p.producer.Kind()) }
func (p *producer) Peer() string        { return p.peerId }
func (p *producer) Closed() bool        { return p.producer.Closed() }

type transport struct {
	transport *msoup.PlainTransport
}

var _ sfu.PlainTransport = (*transport)(nil)

func (t *transport) Id() string { return t.transport.Id() }

func (t *transport) Connect(opts sfu.TransportConnectOptions) error {
	return t.transport.Connect(msoup.TransportConnectOptions{
		Ip:       opts.Ip,
		Port:     opts.Port,
		RtcpPort: opts.RtcpPort,
	})
}

func (t *transport) Consume(producerId string, caps sfu.RtpCapabilities, paused bool) (sfu.Consumer, error) {
	var msCaps msoup.RtpCapabilities
	if err := convert(caps, &msCaps); err != nil {
		return nil, err
	}

	c, err := t.transport.Consume(msoup.ConsumerOptions{
		ProducerId:      producerId,
		RtpCapabilities: msCaps,
		Paused:          paused,
	})
	if err != nil {
		return nil, err
	}
	return &consumer{consumer: c}, nil
}

func (t *transport) Close() {
	t.transport.Close()
}

type consumer struct {
	consumer *msoup.Consumer
}

var _ sfu.Consumer = (*consumer)(nil)

func (c *consumer) Id() string          { return c.consumer.Id() }
func (c *consumer) Kind() sfu.MediaKind { return sfu.MediaKind(c.consumer.Kind()) }

func (c *consumer) RtpParameters() sfu.RtpParameters {
	var params sfu.RtpParameters
	if err := convert(c.consumer.RtpParameters(), &params); err != nil {
		log.Errorf("failed to convert consumer RTP parameters: %v", err)
	}
	return params
}

func (c *consumer) Resume() error          { return c.consumer.Resume() }
func (c *consumer) RequestKeyFrame() error { return c.consumer.RequestKeyFrame() }
func (c *consumer) Closed() bool           { return c.consumer.Closed() }

func (c *consumer) Close() {
	c.consumer.Close()
}

func (c *consumer) OnProducerClose(fn func()) {
	c.consumer.On("producerclose", fn)
}

// convert maps between this package's parameter structs and mediasoup's via
// their shared wire schema; both sides carry mediasoup protocol JSON tags.
func convert(from interface{}, to interface{}) error {
	data, err := json.Marshal(from)
	if err != nil {
		return errors.Wrap(err, "marshal rtp parameters")
	}
	return errors.Wrap(json.Unmarshal(data, to), "unmarshal rtp parameters")
}

func mediaCodecs(caps sfu.RtpCapabilities) ([]*msoup.RtpCodecCapability, error) {
	var codecs []*msoup.RtpCodecCapability
	if err := convert(caps.Codecs, &codecs); err != nil {
		return nil, err
	}
	return codecs, nil
}
