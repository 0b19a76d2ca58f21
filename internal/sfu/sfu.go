// Package sfu defines the small capability surface the recorder needs from a
// selective forwarding unit: enumerating producers, creating loopback plain
// transports and attaching paused consumers to them. The orchestrator is
// written against these interfaces so it can run against a fake in tests; the
// mediasoup subpackage binds them to a real mediasoup worker.
package sfu

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// RtpParameters mirror the mediasoup wire schema for the parameters a
// consumer was created with. Codec Parameters stay a generic map so that
// codec-specific format parameters survive untouched into the fmtp line.
type RtpParameters struct {
	Mid              string                           `json:"mid,omitempty"`
	Codecs           []*RtpCodecParameters            `json:"codecs"`
	HeaderExtensions []*RtpHeaderExtensionParameters  `json:"headerExtensions,omitempty"`
	Encodings        []*RtpEncodingParameters         `json:"encodings,omitempty"`
	Rtcp             *RtcpParameters                  `json:"rtcp,omitempty"`
}

type RtpCodecParameters struct {
	// MimeType is the full codec mime, e.g. "video/VP8" or "audio/opus".
	MimeType    string                 `json:"mimeType"`
	PayloadType byte                   `json:"payloadType"`
	ClockRate   int                    `json:"clockRate"`
	Channels    int                    `json:"channels,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type RtpHeaderExtensionParameters struct {
	Uri string `json:"uri,omitempty"`
	Id  int    `json:"id,omitempty"`
}

type RtpEncodingParameters struct {
	Ssrc       uint32 `json:"ssrc,omitempty"`
	Rid        string `json:"rid,omitempty"`
	MaxBitrate int    `json:"maxBitrate,omitempty"`
}

type RtcpParameters struct {
	Cname       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize,omitempty"`
}

type RtpCodecCapability struct {
	Kind                 MediaKind              `json:"kind"`
	MimeType             string                 `json:"mimeType"`
	PreferredPayloadType byte                   `json:"preferredPayloadType,omitempty"`
	ClockRate            int                    `json:"clockRate"`
	Channels             int                    `json:"channels,omitempty"`
	Parameters           map[string]interface{} `json:"parameters,omitempty"`
}

type RtpCapabilities struct {
	Codecs []*RtpCodecCapability `json:"codecs"`
}

// PlainTransportOptions describe a loopback RTP endpoint: non-mux RTCP on a
// separate port and non-comedia mode (the remote is declared, not learned).
type PlainTransportOptions struct {
	ListenIp string
	RtcpMux  bool
	Comedia  bool
}

type TransportConnectOptions struct {
	Ip       string
	Port     uint16
	RtcpPort uint16
}

// RouterProvider resolves the live router for a room, when one exists.
type RouterProvider interface {
	Router(roomId string) (Router, bool)
}

type Router interface {
	Id() string
	RtpCapabilities() RtpCapabilities
	CanConsume(producerId string, caps RtpCapabilities) bool
	CreatePlainTransport(opts PlainTransportOptions) (PlainTransport, error)
	Producers() []Producer
	Closed() bool
}

type Producer interface {
	Id() string
	Kind() MediaKind
	// Peer identifies the session participant that owns the producer.
	Peer() string
	Closed() bool
}

type PlainTransport interface {
	Id() string
	Connect(opts TransportConnectOptions) error
	Consume(producerId string, caps RtpCapabilities, paused bool) (Consumer, error)
	Close()
}

type Consumer interface {
	Id() string
	Kind() MediaKind
	RtpParameters() RtpParameters
	Resume() error
	RequestKeyFrame() error
	// OnProducerClose registers a handler fired when the consumed producer
	// goes away while the recording is live.
	OnProducerClose(fn func())
	Closed() bool
	Close()
}
