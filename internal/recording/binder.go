package recording

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// Binding pairs one producer with the loopback endpoint and paused consumer
// feeding the muxer, plus the codec the consumer was created with.
type Binding struct {
	Producer  sfu.Producer
	Transport sfu.PlainTransport
	Consumer  sfu.Consumer
	Codec     Codec
	Port      uint16

	ports     *PortAllocator
	closeOnce sync.Once
}

// Close tears the binding down: consumer first, then the transport, then the
// port reservation. Safe to call more than once; the stop path and the
// muxer's input-starvation callback may both reach it.
func (b *Binding) Close() {
	b.closeOnce.Do(func() {
		if b.Consumer != nil && !b.Consumer.Closed() {
			b.Consumer.Close()
		}
		if b.Transport != nil {
			b.Transport.Close()
		}
		if b.ports != nil {
			b.ports.Release(b.Port)
		}
	})
}

// Binder attaches recording consumers to producers over loopback plain
// transports.
type Binder struct {
	Ports *PortAllocator
	Caps  sfu.RtpCapabilities
}

// Bind creates the endpoint/consumer pair for one producer. The transport is
// created non-comedia with RTCP on a separate port, the consumer starts
// paused, and the transport is connected to the allocated loopback pair.
// Returns ErrRouterCannotConsume (caller skips the producer, not the
// recording) when the producer cannot be consumed under the recorder's
// capability set.
func (b *Binder) Bind(router sfu.Router, producer sfu.Producer) (*Binding, error) {
	if !router.CanConsume(producer.Id(), b.Caps) {
		return nil, errors.Wrapf(ErrRouterCannotConsume, "producer %s (%s)", producer.Id(), producer.Kind())
	}

	transport, err := router.CreatePlainTransport(sfu.PlainTransportOptions{
		ListenIp: loopbackIP,
		RtcpMux:  false,
		Comedia:  false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create plain transport for producer %s", producer.Id())
	}

	consumer, err := transport.Consume(producer.Id(), b.Caps, true)
	if err != nil {
		transport.Close()
		return nil, errors.Wrapf(err, "failed to consume producer %s", producer.Id())
	}

	codec, err := CodecFromRtpParameters(producer.Kind(), consumer.RtpParameters())
	if err != nil {
		consumer.Close()
		transport.Close()
		return nil, err
	}

	port, err := b.Ports.Allocate()
	if err != nil {
		consumer.Close()
		transport.Close()
		return nil, err
	}

	if err := transport.Connect(sfu.TransportConnectOptions{
		Ip:       loopbackIP,
		Port:     port,
		RtcpPort: port + 1,
	}); err != nil {
		consumer.Close()
		transport.Close()
		b.Ports.Release(port)
		return nil, errors.Wrapf(err, "failed to connect transport %s", transport.Id())
	}

	log.WithField("producer", producer.Id()).
		WithField("kind", producer.Kind()).
		WithField("port", port).
		Debug("bound recording consumer")

	return &Binding{
		Producer:  producer,
		Transport: transport,
		Consumer:  consumer,
		Codec:     codec,
		Port:      port,
		ports:     b.Ports,
	}, nil
}
