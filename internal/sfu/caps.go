package sfu

import "github.com/pion/webrtc/v3"

// RecorderRtpCapabilities is the capability set the recorder consumes with:
// the superset of codecs the external muxer can ingest over plain RTP. The
// SFU picks the consumer payload types against this set, so the preferred
// payload types here only seed the negotiation.
func RecorderRtpCapabilities() RtpCapabilities {
	return RtpCapabilities{
		Codecs: []*RtpCodecCapability{
			{
				Kind:                 MediaKindAudio,
				MimeType:             webrtc.MimeTypeOpus,
				PreferredPayloadType: 111,
				ClockRate:            48000,
				Channels:             2,
			},
			{
				Kind:                 MediaKindVideo,
				MimeType:             webrtc.MimeTypeVP8,
				PreferredPayloadType: 96,
				ClockRate:            90000,
			},
			{
				Kind:                 MediaKindVideo,
				MimeType:             webrtc.MimeTypeVP9,
				PreferredPayloadType: 98,
				ClockRate:            90000,
			},
			{
				Kind:                 MediaKindVideo,
				MimeType:             webrtc.MimeTypeH264,
				PreferredPayloadType: 102,
				ClockRate:            90000,
				Parameters: map[string]interface{}{
					"packetization-mode":      1,
					"level-asymmetry-allowed": 1,
				},
			},
		},
	}
}
