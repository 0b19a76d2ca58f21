package server

import (
	"encoding/json"
	"net/http"
	"path"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/teleroom/sfu-recorder/internal/config"
	"github.com/teleroom/sfu-recorder/internal/recording"
)

// HTTPServer is an optional operator surface: a JSON listing of active
// recordings and a file server over the record directory.
type HTTPServer struct {
	cfg       *config.Config
	port      int
	mediaRoot string
	registry  *recording.Registry
}

func NewHTTPServer(cfg *config.Config, reg *recording.Registry) *HTTPServer {
	return &HTTPServer{
		cfg:       cfg,
		port:      cfg.HTTP.Port,
		mediaRoot: path.Clean(cfg.Recorder.Directory),
		registry:  reg,
	}
}

type recordingInfo struct {
	Id      string  `json:"id"`
	Mode    string  `json:"mode"`
	Room    string  `json:"room"`
	Elapsed float64 `json:"elapsedSeconds"`
	Inputs  int     `json:"inputs"`
	File    string  `json:"file"`
}

func (s *HTTPServer) Serve() {
	http.HandleFunc("/recordings", func(w http.ResponseWriter, r *http.Request) {
		recs := s.registry.List()
		out := make([]recordingInfo, 0, len(recs))
		for _, rec := range recs {
			out = append(out, recordingInfo{
				Id:      rec.ID,
				Mode:    string(rec.Mode),
				Room:    rec.Room,
				Elapsed: rec.Elapsed().Seconds(),
				Inputs:  len(rec.Inputs),
				File:    rec.FilePath,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Errorf("failed to encode recordings listing: %v", err)
		}
	})

	http.Handle("/media/", http.StripPrefix("/media", http.FileServer(http.Dir(s.mediaRoot))))

	addr := ":" + strconv.Itoa(s.port)
	go func() {
		log.Printf("starting http server on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatal(err)
		}
	}()
}
