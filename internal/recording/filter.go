package recording

import (
	"fmt"
	"strings"
)

// FilterGraph is a complete -filter_complex expression plus the labels to
// map into the output. VideoLabel/AudioLabel are empty when the recording
// has no input of that kind.
type FilterGraph struct {
	Expr       string
	VideoLabel string
	AudioLabel string
}

// gridLayout returns the tiling for v video inputs. Cells are filled in
// row-major order; with three inputs the fourth cell stays black.
func gridLayout(v int) (rows, cols int) {
	switch {
	case v <= 1:
		return 1, 1
	case v == 2:
		return 1, 2
	default:
		return 2, 2
	}
}

// BuildFilterGraph composes the mixed-mode filter graph for v video and a
// audio inputs at a w×h output, assuming the muxer's inputs are ordered
// video-first (video inputs 0..v-1, audio inputs v..v+a-1). Each video is
// scaled to fit its cell preserving aspect ratio, padded to the exact cell
// with black, normalized to fps/square pixels/planar 4:2:0, then stacked.
// Audio is drift-compensated, summed when there is more than one input, and
// re-based to zero.
//
// Pure function of its arguments so graphs can be snapshot-tested.
func BuildFilterGraph(v, a, w, h, fps int) FilterGraph {
	var chains []string
	var g FilterGraph

	if v > 0 {
		rows, cols := gridLayout(v)
		cw, ch := w/cols, h/rows

		if v == 1 {
			chains = append(chains, fmt.Sprintf(
				"[0:v]%s[vout]", videoCellChain(cw, ch, fps)))
		} else {
			labels := make([]string, 0, v)
			for i := 0; i < v; i++ {
				label := fmt.Sprintf("v%d", i)
				chains = append(chains, fmt.Sprintf(
					"[%d:v]%s[%s]", i, videoCellChain(cw, ch, fps), label))
				labels = append(labels, "["+label+"]")
			}

			layout := make([]string, 0, v)
			for i := 0; i < v; i++ {
				row, col := i/cols, i%cols
				layout = append(layout, fmt.Sprintf("%d_%d", col*cw, row*ch))
			}

			chains = append(chains, fmt.Sprintf(
				"%sxstack=inputs=%d:layout=%s:fill=black[vout]",
				strings.Join(labels, ""), v, strings.Join(layout, "|")))
		}
		g.VideoLabel = "vout"
	}

	if a > 0 {
		if a == 1 {
			chains = append(chains, fmt.Sprintf(
				"[%d:a]aresample=async=1,asetpts=PTS-STARTPTS[aout]", v))
		} else {
			labels := make([]string, 0, a)
			for i := 0; i < a; i++ {
				label := fmt.Sprintf("a%d", i)
				chains = append(chains, fmt.Sprintf(
					"[%d:a]aresample=async=1[%s]", v+i, label))
				labels = append(labels, "["+label+"]")
			}
			chains = append(chains, fmt.Sprintf(
				"%samix=inputs=%d:duration=longest:normalize=1,asetpts=PTS-STARTPTS[aout]",
				strings.Join(labels, ""), a))
		}
		g.AudioLabel = "aout"
	}

	g.Expr = strings.Join(chains, ";")
	return g
}

func videoCellChain(cw, ch, fps int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,"+
			"pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,"+
			"fps=%d,setsar=1,format=yuv420p",
		cw, ch, cw, ch, fps)
}
