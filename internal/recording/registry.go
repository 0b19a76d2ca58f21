package recording

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Registry maps recording ids to live recordings. It is the only mutable
// structure shared between recordings: entries are inserted on start success
// and deleted only after a stop has quiesced both the muxer and the SFU-side
// resources.
type Registry struct {
	mu   sync.Mutex
	recs map[string]*Recording
}

func NewRegistry() *Registry {
	return &Registry{recs: make(map[string]*Recording)}
}

func (r *Registry) Add(rec *Recording) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.ID] = rec
}

func (r *Registry) Get(id string) (*Recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	return rec, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// List snapshots the active recordings.
func (r *Registry) List() []*Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Recording, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, rec)
	}
	return out
}

// StartHealthCheck sweeps the registry on an interval and force-stops any
// recording older than the stale threshold, so an operator that never sends
// stop cannot leak muxer processes forever.
func (r *Registry) StartHealthCheck(ctx context.Context, interval, stale time.Duration, forceStop func(*Recording)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, rec := range r.Stale(stale) {
					log.WithField("recording", rec.ID).
						WithField("elapsed", rec.Elapsed()).
						Warn("recording exceeded stale threshold, forcing stop")
					forceStop(rec)
				}
			}
		}
	}()
}

// Stale returns the recordings whose elapsed time exceeds the threshold.
func (r *Registry) Stale(threshold time.Duration) []*Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Recording
	for _, rec := range r.recs {
		if rec.Elapsed() > threshold {
			out = append(out, rec)
		}
	}
	return out
}
