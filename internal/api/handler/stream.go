package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cwarner/backhaul/internal/model"
)

// streamProgress forwards a progress sequence as server-sent events, one
// event per line, flushing after each so the client sees output live.
func streamProgress(w http.ResponseWriter, ch <-chan model.ProgressLine) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for line := range ch {
		data, err := json.Marshal(line)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
