package recording

import (
	"fmt"
	"strconv"

	"github.com/pion/sdp/v3"
	"github.com/pkg/errors"
)

const loopbackIP = "127.0.0.1"

// SynthesizeSDP produces the session description the muxer reads to know
// what arrives on the loopback port: one media section whose payload type,
// clock rate and format parameters match the consumer bit-exactly. RTCP is
// declared non-multiplexed on port+1.
func SynthesizeSDP(codec Codec, port uint16) (string, error) {
	conn := &sdp.ConnectionInformation{
		NetworkType: "IN",
		AddressType: "IP4",
		Address:     &sdp.Address{Address: loopbackIP},
	}

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   string(codec.Media()),
			Port:    sdp.RangedPort{Value: int(port)},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{strconv.Itoa(int(codec.Payload()))},
		},
		ConnectionInformation: conn,
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("rtpmap", fmt.Sprintf("%d %s", codec.Payload(), codec.RtpMap())),
			sdp.NewAttribute("rtcp", fmt.Sprintf("%d IN IP4 %s", port+1, loopbackIP)),
			sdp.NewAttribute("recvonly", ""),
		},
	}

	if fmtp := codec.FmtpLine(); fmtp != "" {
		media.Attributes = append(media.Attributes,
			sdp.NewAttribute("fmtp", fmt.Sprintf("%d %s", codec.Payload(), fmtp)))
	}

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: loopbackIP,
		},
		SessionName:           "sfu-recorder",
		ConnectionInformation: conn,
		TimeDescriptions:      []sdp.TimeDescription{{}},
		MediaDescriptions:     []*sdp.MediaDescription{media},
	}

	raw, err := desc.Marshal()
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal SDP")
	}
	return string(raw), nil
}
