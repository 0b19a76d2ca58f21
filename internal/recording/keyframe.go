package recording

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/sfu"
)

// startKeyframePump asks every video consumer for an IDR immediately, then
// on a fixed interval, so the muxer always has a decodable GOP to write.
// The returned func cancels the pump; it is safe to call more than once.
func startKeyframePump(consumers []sfu.Consumer, interval time.Duration, entry *log.Entry) func() {
	videos := make([]sfu.Consumer, 0, len(consumers))
	for _, c := range consumers {
		if c.Kind() == sfu.MediaKindVideo {
			videos = append(videos, c)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	if len(videos) == 0 {
		return cancel
	}

	requestAll := func() {
		for _, c := range videos {
			if c.Closed() {
				continue
			}
			if err := c.RequestKeyFrame(); err != nil {
				entry.WithField("consumer", c.Id()).
					Debugf("keyframe request failed: %v", err)
			}
		}
	}

	requestAll()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				requestAll()
			}
		}
	}()

	return cancel
}
