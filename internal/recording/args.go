package recording

import (
	"fmt"
	"strconv"
)

// protocolWhitelist is what the muxer needs to read SDP files from disk and
// pull RTP off loopback UDP.
const protocolWhitelist = "file,crypto,data,udp,rtp"

func baseMuxerArgs(logLevel string) []string {
	return []string{"-hide_banner", "-loglevel", logLevel, "-y"}
}

// sdpInputArgs declares one SDP file as a muxer input. The protocol
// whitelist is an input option, so it precedes every -i.
func sdpInputArgs(sdpPath string) []string {
	return []string{
		"-protocol_whitelist", protocolWhitelist,
		"-thread_queue_size", "1024",
		"-i", sdpPath,
	}
}

// MixedMuxerArgs builds the argument vector for the single mixed-output
// muxer: N SDP inputs, the tiling/mixing filter graph, H.264 baseline with
// one closed GOP per second and no B-frames, AAC stereo, and movflags that
// keep a partially written file playable after a crash.
func MixedMuxerArgs(logLevel string, sdpPaths []string, g FilterGraph, fps, audioKbps int, out string) []string {
	args := baseMuxerArgs(logLevel)
	for _, sdp := range sdpPaths {
		args = append(args, sdpInputArgs(sdp)...)
	}

	if g.Expr != "" {
		args = append(args, "-filter_complex", g.Expr)
	}

	if g.VideoLabel != "" {
		gop := strconv.Itoa(fps)
		args = append(args,
			"-map", "["+g.VideoLabel+"]",
			"-c:v", "libx264",
			"-profile:v", "baseline",
			"-preset", "ultrafast",
			"-tune", "zerolatency",
			"-pix_fmt", "yuv420p",
			"-r", strconv.Itoa(fps),
			"-g", gop,
			"-keyint_min", gop,
			"-sc_threshold", "0",
			"-bf", "0",
		)
	}

	if g.AudioLabel != "" {
		args = append(args,
			"-map", "["+g.AudioLabel+"]",
			"-c:a", "aac",
			"-b:a", fmt.Sprintf("%dk", audioKbps),
			"-ar", "48000",
			"-ac", "2",
		)
	}

	args = append(args,
		"-movflags", "+faststart+frag_keyframe+empty_moov",
		out,
	)
	return args
}

// ParticipantVideoArgs builds the per-producer muxer arguments for one video
// input re-encoded to VP8 in WebM.
func ParticipantVideoArgs(logLevel, sdpPath string, videoKbps, fps int, out string) []string {
	args := baseMuxerArgs(logLevel)
	args = append(args, sdpInputArgs(sdpPath)...)
	args = append(args,
		"-map", "0:v",
		"-c:v", "libvpx",
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
		out,
	)
	return args
}

// ParticipantAudioArgs builds the per-producer muxer arguments for one audio
// input re-encoded to Opus in WebM.
func ParticipantAudioArgs(logLevel, sdpPath string, audioKbps int, out string) []string {
	args := baseMuxerArgs(logLevel)
	args = append(args, sdpInputArgs(sdpPath)...)
	args = append(args,
		"-map", "0:a",
		"-c:a", "libopus",
		"-b:a", fmt.Sprintf("%dk", audioKbps),
		out,
	)
	return args
}
