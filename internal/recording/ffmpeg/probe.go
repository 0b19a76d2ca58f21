package ffmpeg

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Probe runs the external probe on a finished output file to confirm it is
// readable and report its duration.
func Probe(ctx context.Context, probePath, file string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, probePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		file,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, errors.Wrapf(err, "probe failed for %s", file)
	}

	return ParseProbeOutput(out)
}

// ParseProbeOutput extracts format.duration from the probe's JSON stdout.
func ParseProbeOutput(out []byte) (time.Duration, error) {
	var probed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal(out, &probed); err != nil {
		return 0, errors.Wrap(err, "failed to decode probe output")
	}
	if probed.Format.Duration == "" {
		return 0, errors.New("probe output has no format.duration")
	}

	seconds, err := strconv.ParseFloat(probed.Format.Duration, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid probe duration %q", probed.Format.Duration)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
