// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// EventPayload is the JSON body of one SSE event on /api/v1/events.
type EventPayload struct {
	Type  string   `json:"type"`
	Set   string   `json:"set"`
	Job   *JobView `json:"job,omitempty"`
	Count int      `json:"count,omitempty"`
}

// EventVectorsImported is emitted after an ingest batch adds vectors.
const EventVectorsImported = "vectors_imported"

const heartbeatInterval = 15 * time.Second

func (s *Server) registerEventsRoute() {
	s.router.Get("/api/v1/events", s.handleEvents)

	// The streaming handler needs raw http.ResponseWriter access, so the chi
	// route above does the work; this entry documents it in the OpenAPI output.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "events",
		Method:      http.MethodGet,
		Path:        "/api/v1/events",
		Summary:     "Stream job events via SSE",
		Description: "Typed events: job_status_changed on any observed transition, job_finished once per completion, vectors_imported after an ingest batch.",
		Tags:        []string{"jobs", "system"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{
							Type:        "string",
							Description: "Server-sent event stream",
						},
					},
				},
			},
		},
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	// Undo the server-wide write deadline for this long-lived response.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	events := s.services.jobs.Events()
	ingestEvents := s.services.ingestEvents
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-events:
			jv := jobView(ev.Event.Job)
			payload, err := json.Marshal(EventPayload{
				Type: string(ev.Event.Type),
				Set:  ev.Set,
				Job:  &jv,
			})
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event.Type, payload); err != nil {
				return
			}
		case ev := <-ingestEvents:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
