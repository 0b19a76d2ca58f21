package recording

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// Codec is the per-kind view of the parameters a recording consumer was
// created with. The values come from the consumer side of the negotiation,
// not the producer side: the SFU may renumber payload types for consumers,
// and the muxer must be told what it will actually receive.
type Codec interface {
	Media() sfu.MediaKind
	Payload() byte
	RtpMap() string
	FmtpLine() string
}

type VideoCodec struct {
	PayloadType byte
	Name        string
	ClockRate   int
	Fmtp        string
}

func (c VideoCodec) Media() sfu.MediaKind { return sfu.MediaKindVideo }
func (c VideoCodec) Payload() byte        { return c.PayloadType }
func (c VideoCodec) FmtpLine() string     { return c.Fmtp }

func (c VideoCodec) RtpMap() string {
	return fmt.Sprintf("%s/%d", c.Name, c.ClockRate)
}

type AudioCodec struct {
	PayloadType byte
	Name        string
	ClockRate   int
	Channels    int
	Fmtp        string
}

func (c AudioCodec) Media() sfu.MediaKind { return sfu.MediaKindAudio }
func (c AudioCodec) Payload() byte        { return c.PayloadType }
func (c AudioCodec) FmtpLine() string     { return c.Fmtp }

func (c AudioCodec) RtpMap() string {
	return fmt.Sprintf("%s/%d/%d", c.Name, c.ClockRate, c.Channels)
}

// CodecFromRtpParameters extracts the first codec of the given kind from a
// consumer's RTP parameters.
func CodecFromRtpParameters(kind sfu.MediaKind, params sfu.RtpParameters) (Codec, error) {
	for _, c := range params.Codecs {
		mime := strings.ToLower(c.MimeType)
		if !strings.HasPrefix(mime, string(kind)+"/") {
			continue
		}

		name := c.MimeType[strings.Index(c.MimeType, "/")+1:]
		fmtp := fmtpString(c.Parameters)

		if kind == sfu.MediaKindVideo {
			return VideoCodec{
				PayloadType: c.PayloadType,
				Name:        name,
				ClockRate:   c.ClockRate,
				Fmtp:        fmtp,
			}, nil
		}

		channels := c.Channels
		if channels == 0 {
			channels = 2
		}
		return AudioCodec{
			PayloadType: c.PayloadType,
			Name:        name,
			ClockRate:   c.ClockRate,
			Channels:    channels,
			Fmtp:        fmtp,
		}, nil
	}

	return nil, errors.Errorf("no %s codec in consumer RTP parameters", kind)
}

// fmtpString renders codec-specific parameters as a "k=v;k=v" fmtp payload.
// Keys are sorted so the synthesized SDP is deterministic.
func fmtpString(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(pairs, ";")
}
