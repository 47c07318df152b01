// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vecscope-dev/vecscope/internal/ingest"
	"github.com/vecscope-dev/vecscope/internal/session"
	"github.com/vecscope-dev/vecscope/internal/vecstore"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerEventsRoute()
}

func (s *Server) registerRoutes() {
	// Vector set endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sets",
		Method:      http.MethodGet,
		Path:        "/api/v1/sets",
		Summary:     "List vector sets",
		Tags:        []string{"sets"},
	}, s.handleListSets)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-set",
		Method:      http.MethodGet,
		Path:        "/api/v1/sets/{set}",
		Summary:     "Get vector set details",
		Tags:        []string{"sets"},
	}, s.handleGetSet)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-set",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/search",
		Summary:     "Run a similarity search",
		Tags:        []string{"search"},
	}, s.handleSearch)

	// Session endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "create-session",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions",
		Summary:     "Open a browsing session",
		Tags:        []string{"sessions"},
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get session state and results",
		Tags:        []string{"sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-session",
		Method:      http.MethodPatch,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Update session state",
		Description: "Each change debounces a search; results arrive asynchronously on the session.",
		Tags:        []string{"sessions"},
	}, s.handleUpdateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "close-session",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Close a session",
		Tags:        []string{"sessions"},
	}, s.handleCloseSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "session-attributes",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}/attributes",
		Summary:     "Get cached attributes for the session's current results",
		Tags:        []string{"sessions", "attributes"},
	}, s.handleSessionAttributes)

	// Ingestion
	huma.Register(s.api, huma.Operation{
		OperationID: "ingest",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/ingest",
		Summary:     "Ingest a batch of items",
		Description: "Items are embedded and added independently; one failure does not abort the batch.",
		Tags:        []string{"ingest"},
	}, s.handleIngest)

	// Import jobs
	huma.Register(s.api, huma.Operation{
		OperationID: "create-import-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/jobs",
		Summary:     "Queue a bulk import job",
		Tags:        []string{"jobs"},
	}, s.handleCreateImportJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/sets/{set}/jobs",
		Summary:     "List import jobs (dismissed jobs filtered)",
		Tags:        []string{"jobs"},
	}, s.handleListJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "pause-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/jobs/{id}/pause",
		Summary:     "Pause a processing job",
		Tags:        []string{"jobs"},
	}, s.handlePauseJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "resume-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/jobs/{id}/resume",
		Summary:     "Resume a paused job",
		Tags:        []string{"jobs"},
	}, s.handleResumeJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/jobs/{id}/cancel",
		Summary:     "Cancel a job",
		Tags:        []string{"jobs"},
	}, s.handleCancelJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "dismiss-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/jobs/{id}/dismiss",
		Summary:     "Dismiss a job locally",
		Description: "Local-only and idempotent; the job never reappears in later polls.",
		Tags:        []string{"jobs"},
	}, s.handleDismissJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "force-cleanup-job",
		Method:      http.MethodPost,
		Path:        "/api/v1/sets/{set}/jobs/{id}/force-cleanup",
		Summary:     "Best-effort cancel plus dismiss",
		Tags:        []string{"jobs"},
	}, s.handleForceCleanupJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "import-log",
		Method:      http.MethodGet,
		Path:        "/api/v1/sets/{set}/importlog",
		Summary:     "Get the import history log",
		Tags:        []string{"jobs"},
	}, s.handleImportLog)

	// Element endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "element-links",
		Method:      http.MethodGet,
		Path:        "/api/v1/sets/{set}/elements/{element}/links",
		Summary:     "Get an element's neighbor links per graph layer",
		Tags:        []string{"elements"},
	}, s.handleElementLinks)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-element-attributes",
		Method:      http.MethodGet,
		Path:        "/api/v1/sets/{set}/elements/{element}/attributes",
		Summary:     "Get an element's raw attributes",
		Tags:        []string{"attributes"},
	}, s.handleGetElementAttributes)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-element-attributes",
		Method:      http.MethodPut,
		Path:        "/api/v1/sets/{set}/elements/{element}/attributes",
		Summary:     "Replace an element's attributes",
		Tags:        []string{"attributes"},
	}, s.handleSetElementAttributes)

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-element",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sets/{set}/elements/{element}",
		Summary:     "Remove an element",
		Tags:        []string{"elements"},
	}, s.handleRemoveElement)

	// Preferences
	huma.Register(s.api, huma.Operation{
		OperationID: "list-prefs",
		Method:      http.MethodGet,
		Path:        "/api/v1/prefs",
		Summary:     "List preferences",
		Tags:        []string{"prefs"},
	}, s.handleListPrefs)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-pref",
		Method:      http.MethodPut,
		Path:        "/api/v1/prefs/{key}",
		Summary:     "Set a preference",
		Tags:        []string{"prefs"},
	}, s.handleSetPref)
}

// apiError maps an internal error onto the HTTP status its code implies.
func apiError(err error, msg string) error {
	return huma.NewError(vserr.HTTPStatus(err), msg, err)
}

// --- Request/Response types for huma ---

type listSetsOutput struct {
	Body struct {
		Sets []string `json:"sets" doc:"Vector set names"`
	}
}

type setInput struct {
	Set string `path:"set" doc:"Vector set name"`
}

type getSetOutput struct {
	Body struct {
		Name        string `json:"name" doc:"Vector set name"`
		Cardinality int64  `json:"cardinality" doc:"Number of elements"`
		Dimensions  int    `json:"dimensions" doc:"Vector dimensionality"`
	}
}

// TuningView carries the pass-through search knobs.
type TuningView struct {
	SearchEF        int  `json:"search_ef,omitempty" doc:"Search exploration factor (0 = server default)"`
	FilterEF        int  `json:"filter_ef,omitempty" doc:"Filter exploration factor (0 = server default)"`
	ForceLinearScan bool `json:"force_linear_scan,omitempty" doc:"Exact linear scan instead of graph search"`
	NoThread        bool `json:"no_thread,omitempty" doc:"Keep the search on the main server thread"`
}

// MatchView is one ranked hit.
type MatchView struct {
	Element    string    `json:"element" doc:"Element identifier"`
	Score      float64   `json:"score" doc:"Similarity score"`
	Vector     []float32 `json:"vector,omitempty" doc:"Stored vector, when requested"`
	Attributes string    `json:"attributes,omitempty" doc:"Raw attribute JSON, when requested"`
}

type searchInput struct {
	Set  string `path:"set"`
	Body struct {
		Vector         []float32 `json:"vector,omitempty" doc:"Query vector"`
		Element        string    `json:"element,omitempty" doc:"Anchor element (instead of a vector)"`
		Filter         string    `json:"filter,omitempty" doc:"Filter expression"`
		Count          int       `json:"count,omitempty" doc:"Result count"`
		WithVectors    bool      `json:"with_vectors,omitempty"`
		WithAttributes bool      `json:"with_attributes,omitempty"`
		TuningView
	}
}

type searchOutput struct {
	Body struct {
		Matches          []MatchView `json:"matches"`
		ExecutionSeconds float64     `json:"execution_seconds" doc:"Store-reported execution time"`
		Command          string      `json:"command" doc:"Literal command the store ran"`
	}
}

type createSessionInput struct {
	Body struct {
		Set string `json:"set" minLength:"1" doc:"Vector set to browse"`
	}
}

type createSessionOutput struct {
	Body struct {
		SessionID string `json:"session_id"`
	}
}

type sessionIDInput struct {
	ID string `path:"id" doc:"Session identifier"`
}

// SessionView is the point-in-time session state returned by GET.
type SessionView struct {
	Set           string      `json:"set"`
	Mode          string      `json:"mode"`
	Query         string      `json:"query"`
	Filter        string      `json:"filter"`
	Count         int         `json:"count"`
	Tuning        TuningView  `json:"tuning"`
	ResultsTitle  string      `json:"results_title,omitempty"`
	SearchSeconds float64     `json:"search_seconds,omitempty"`
	Command       string      `json:"command,omitempty"`
	Matches       []MatchView `json:"matches"`
	Error         string      `json:"error,omitempty" doc:"Last error; cleared by the next action"`
}

type getSessionOutput struct {
	Body SessionView
}

type updateSessionInput struct {
	ID   string `path:"id"`
	Body struct {
		Set    *string     `json:"set,omitempty" doc:"Switch to another vector set"`
		Query  *string     `json:"query,omitempty"`
		Mode   *string     `json:"mode,omitempty" enum:"vector,element,image"`
		Filter *string     `json:"filter,omitempty"`
		Count  *int        `json:"count,omitempty"`
		Tuning *TuningView `json:"tuning,omitempty"`
	}
}

type statusOutput struct {
	Body struct {
		Status string `json:"status" example:"accepted"`
	}
}

type sessionAttributesOutput struct {
	Body struct {
		Attributes map[string]AttributeView `json:"attributes"`
		Error      string                   `json:"error,omitempty" doc:"Last attribute fetch error"`
	}
}

// AttributeView pairs the raw attribute string with its parsed form, when
// the raw string is valid JSON.
type AttributeView struct {
	Raw    string         `json:"raw"`
	Parsed map[string]any `json:"parsed,omitempty"`
}

type ingestInput struct {
	Set  string `path:"set"`
	Body struct {
		Items []IngestItemRequest `json:"items" minItems:"1"`
	}
}

// IngestItemRequest is one item of an ingestion batch. Text and Data are
// alternatives; Data is base64 in JSON.
type IngestItemRequest struct {
	Filename   string `json:"filename,omitempty"`
	MediaType  string `json:"media_type,omitempty"`
	Text       string `json:"text,omitempty"`
	Data       []byte `json:"data,omitempty"`
	Attributes string `json:"attributes,omitempty" doc:"Attribute JSON stored with the vector"`
}

type ingestOutput struct {
	Body struct {
		Results   []IngestResultView `json:"results"`
		Processed int                `json:"processed"`
		Total     int                `json:"total"`
	}
}

// IngestResultView is the per-item outcome.
type IngestResultView struct {
	Element string `json:"element"`
	Kind    string `json:"kind"`
	Error   string `json:"error,omitempty"`
}

type createImportJobInput struct {
	Set  string `path:"set"`
	Body struct {
		Filename  string `json:"filename" minLength:"1"`
		Payload   []byte `json:"payload" doc:"Import file content, base64 in JSON"`
		Embedding string `json:"embedding,omitempty" doc:"Provider the remote worker should embed with"`
	}
}

// JobView is the REST representation of an import job.
type JobView struct {
	ID        string     `json:"id"`
	Set       string     `json:"set"`
	Status    string     `json:"status"`
	Total     int        `json:"total"`
	Done      int        `json:"done"`
	Filename  string     `json:"filename,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	PausedAt  *time.Time `json:"paused_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type jobOutput struct {
	Body JobView
}

type listJobsOutput struct {
	Body struct {
		Jobs []JobView `json:"jobs"`
	}
}

type jobActionInput struct {
	Set string `path:"set"`
	ID  string `path:"id" doc:"Job identifier"`
}

type importLogInput struct {
	Set   string `path:"set"`
	Limit int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
}

type importLogOutput struct {
	Body struct {
		Entries []ImportLogEntryView `json:"entries"`
	}
}

// ImportLogEntryView is one import history line.
type ImportLogEntryView struct {
	At      time.Time `json:"at"`
	Set     string    `json:"set"`
	Message string    `json:"message"`
}

type elementInput struct {
	Set     string `path:"set"`
	Element string `path:"element"`
}

// NeighborView is one graph edge.
type NeighborView struct {
	Element string  `json:"element"`
	Score   float64 `json:"score"`
}

type elementLinksOutput struct {
	Body struct {
		Layers [][]NeighborView `json:"layers" doc:"Neighbor links, one slice per graph layer"`
	}
}

type getAttributesOutput struct {
	Body struct {
		Attributes string `json:"attributes"`
	}
}

type setAttributesInput struct {
	Set     string `path:"set"`
	Element string `path:"element"`
	Body    struct {
		Attributes string `json:"attributes" doc:"Raw attribute JSON; empty clears"`
	}
}

type listPrefsOutput struct {
	Body struct {
		Prefs map[string]string `json:"prefs"`
	}
}

type setPrefInput struct {
	Key  string `path:"key" minLength:"1"`
	Body struct {
		Value string `json:"value"`
	}
}

// --- Handlers ---

func (s *Server) handleListSets(ctx context.Context, _ *struct{}) (*listSetsOutput, error) {
	sets, err := s.services.store.ListSets(ctx)
	if err != nil {
		return nil, apiError(err, "listing vector sets")
	}
	out := &listSetsOutput{}
	out.Body.Sets = sets
	return out, nil
}

func (s *Server) handleGetSet(ctx context.Context, input *setInput) (*getSetOutput, error) {
	card, err := s.services.store.Cardinality(ctx, input.Set)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("reading cardinality of %q", input.Set))
	}
	dims, err := s.services.store.Dimensionality(ctx, input.Set)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("reading dimensionality of %q", input.Set))
	}
	out := &getSetOutput{}
	out.Body.Name = input.Set
	out.Body.Cardinality = card
	out.Body.Dimensions = dims
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	if len(input.Body.Vector) == 0 && input.Body.Element == "" {
		return nil, huma.Error422UnprocessableEntity("either vector or element is required")
	}

	result, err := s.services.store.SimilaritySearch(ctx, input.Set, vecstore.Query{
		Vector:          input.Body.Vector,
		Element:         input.Body.Element,
		Filter:          input.Body.Filter,
		Count:           input.Body.Count,
		SearchEF:        input.Body.SearchEF,
		FilterEF:        input.Body.FilterEF,
		ForceLinearScan: input.Body.ForceLinearScan,
		NoThread:        input.Body.NoThread,
		WithVectors:     input.Body.WithVectors,
		WithAttributes:  input.Body.WithAttributes,
	})
	if err != nil {
		return nil, apiError(err, "search failed")
	}

	out := &searchOutput{}
	out.Body.Matches = matchViews(result.Matches)
	out.Body.ExecutionSeconds = result.ExecutionSeconds
	out.Body.Command = result.Command
	return out, nil
}

func (s *Server) handleCreateSession(_ context.Context, input *createSessionInput) (*createSessionOutput, error) {
	id := s.services.openSession(input.Body.Set)
	out := &createSessionOutput{}
	out.Body.SessionID = id
	return out, nil
}

func (s *Server) handleGetSession(_ context.Context, input *sessionIDInput) (*getSessionOutput, error) {
	ctrl, err := s.services.sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("session %q not found", input.ID))
	}

	snap := ctrl.Snapshot()
	view := SessionView{
		Set:    snap.Set,
		Mode:   string(snap.State.Mode),
		Query:  snap.State.Query,
		Filter: snap.State.Filter,
		Count:  snap.State.Count,
		Tuning: TuningView{
			SearchEF:        snap.State.Tuning.SearchEF,
			FilterEF:        snap.State.Tuning.FilterEF,
			ForceLinearScan: snap.State.Tuning.ForceLinearScan,
			NoThread:        snap.State.Tuning.NoThread,
		},
		ResultsTitle:  snap.State.ResultsTitle,
		SearchSeconds: snap.State.SearchSeconds,
		Command:       snap.State.Command,
		Matches:       matchViews(snap.Matches),
	}
	if snap.Err != nil {
		view.Error = snap.Err.Error()
	}
	return &getSessionOutput{Body: view}, nil
}

func (s *Server) handleUpdateSession(_ context.Context, input *updateSessionInput) (*statusOutput, error) {
	ctrl, err := s.services.sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("session %q not found", input.ID))
	}

	if m := input.Body.Mode; m != nil && !session.Mode(*m).Valid() {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("unknown mode %q", *m))
	}

	// Set switch first: it resets everything except the filter, and any
	// field changes in the same request apply to the new set.
	if input.Body.Set != nil {
		ctrl.SwitchSet(*input.Body.Set)
	}
	if input.Body.Mode != nil {
		ctrl.SetMode(session.Mode(*input.Body.Mode))
	}
	if input.Body.Query != nil {
		ctrl.SetQuery(*input.Body.Query)
	}
	if input.Body.Filter != nil {
		ctrl.SetFilter(*input.Body.Filter)
	}
	if input.Body.Count != nil {
		ctrl.SetCount(*input.Body.Count)
	}
	if t := input.Body.Tuning; t != nil {
		ctrl.SetTuning(session.Tuning{
			SearchEF:        t.SearchEF,
			FilterEF:        t.FilterEF,
			ForceLinearScan: t.ForceLinearScan,
			NoThread:        t.NoThread,
		})
	}

	out := &statusOutput{}
	out.Body.Status = "accepted"
	return out, nil
}

func (s *Server) handleCloseSession(_ context.Context, input *sessionIDInput) (*statusOutput, error) {
	s.services.closeSession(input.ID)
	out := &statusOutput{}
	out.Body.Status = "closed"
	return out, nil
}

func (s *Server) handleSessionAttributes(_ context.Context, input *sessionIDInput) (*sessionAttributesOutput, error) {
	ctrl, err := s.services.sessions.Get(input.ID)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("session %q not found", input.ID))
	}
	cache, err := s.services.sessionAttrs(input.ID)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("session %q not found", input.ID))
	}

	out := &sessionAttributesOutput{}
	out.Body.Attributes = make(map[string]AttributeView)
	for _, m := range ctrl.Snapshot().Matches {
		raw, ok := cache.Raw(m.Element)
		if !ok {
			continue
		}
		view := AttributeView{Raw: raw}
		if parsed, ok := cache.Parsed(m.Element); ok {
			view.Parsed = parsed
		}
		out.Body.Attributes[m.Element] = view
	}
	if err := cache.Err(); err != nil {
		out.Body.Error = err.Error()
	}
	return out, nil
}

func (s *Server) handleIngest(ctx context.Context, input *ingestInput) (*ingestOutput, error) {
	items := make([]ingest.Item, 0, len(input.Body.Items))
	for _, it := range input.Body.Items {
		data := it.Data
		if len(data) == 0 {
			data = []byte(it.Text)
		}
		items = append(items, ingest.Item{
			Filename:   it.Filename,
			MediaType:  it.MediaType,
			Data:       data,
			Attributes: it.Attributes,
		})
	}

	results := s.services.pipeline.Ingest(ctx, input.Set, s.services.embedCfg, items)

	out := &ingestOutput{}
	out.Body.Total = len(results)
	out.Body.Processed = len(results)
	out.Body.Results = make([]IngestResultView, 0, len(results))
	succeeded := 0
	for _, r := range results {
		view := IngestResultView{Element: r.Element, Kind: string(r.Kind)}
		if r.Err != nil {
			view.Error = r.Err.Error()
		} else {
			succeeded++
		}
		out.Body.Results = append(out.Body.Results, view)
	}
	if succeeded > 0 {
		s.services.notifyVectorsImported(input.Set, succeeded)
	}
	return out, nil
}

func (s *Server) handleCreateImportJob(ctx context.Context, input *createImportJobInput) (*jobOutput, error) {
	job, err := s.services.jobs.Service().CreateImportJob(ctx, input.Set, vecstore.ImportRequest{
		Filename:  input.Body.Filename,
		Payload:   input.Body.Payload,
		Embedding: input.Body.Embedding,
	})
	if err != nil {
		return nil, apiError(err, "queuing import job")
	}
	// Start observing the set right away so the new job shows up.
	s.services.jobs.Tracker(input.Set)
	return &jobOutput{Body: jobView(*job)}, nil
}

func (s *Server) handleListJobs(_ context.Context, input *setInput) (*listJobsOutput, error) {
	tracker := s.services.jobs.Tracker(input.Set)

	out := &listJobsOutput{}
	jobsList := tracker.Jobs()
	out.Body.Jobs = make([]JobView, 0, len(jobsList))
	for _, j := range jobsList {
		out.Body.Jobs = append(out.Body.Jobs, jobView(j))
	}
	return out, nil
}

func (s *Server) handlePauseJob(ctx context.Context, input *jobActionInput) (*statusOutput, error) {
	if err := s.services.jobs.Tracker(input.Set).Pause(ctx, input.ID); err != nil {
		return nil, apiError(err, fmt.Sprintf("pausing job %q", input.ID))
	}
	return actionStatus("paused"), nil
}

func (s *Server) handleResumeJob(ctx context.Context, input *jobActionInput) (*statusOutput, error) {
	if err := s.services.jobs.Tracker(input.Set).Resume(ctx, input.ID); err != nil {
		return nil, apiError(err, fmt.Sprintf("resuming job %q", input.ID))
	}
	return actionStatus("resumed"), nil
}

func (s *Server) handleCancelJob(ctx context.Context, input *jobActionInput) (*statusOutput, error) {
	if err := s.services.jobs.Tracker(input.Set).Cancel(ctx, input.ID); err != nil {
		return nil, apiError(err, fmt.Sprintf("cancelling job %q", input.ID))
	}
	return actionStatus("cancelled"), nil
}

func (s *Server) handleDismissJob(_ context.Context, input *jobActionInput) (*statusOutput, error) {
	s.services.jobs.Tracker(input.Set).Dismiss(input.ID)
	return actionStatus("dismissed"), nil
}

func (s *Server) handleForceCleanupJob(ctx context.Context, input *jobActionInput) (*statusOutput, error) {
	s.services.jobs.Tracker(input.Set).ForceCleanup(ctx, input.ID)
	return actionStatus("cleaned"), nil
}

func (s *Server) handleImportLog(ctx context.Context, input *importLogInput) (*importLogOutput, error) {
	tracker := s.services.jobs.Tracker(input.Set)
	if err := tracker.RefreshImportLog(ctx); err != nil {
		return nil, apiError(err, "fetching import log")
	}

	out := &importLogOutput{}
	entries := tracker.ImportLog()
	if len(entries) > input.Limit {
		entries = entries[:input.Limit]
	}
	out.Body.Entries = make([]ImportLogEntryView, 0, len(entries))
	for _, e := range entries {
		out.Body.Entries = append(out.Body.Entries, ImportLogEntryView{At: e.At, Set: e.Set, Message: e.Message})
	}
	return out, nil
}

func (s *Server) handleElementLinks(ctx context.Context, input *elementInput) (*elementLinksOutput, error) {
	layers, err := s.services.store.Links(ctx, input.Set, input.Element)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("reading links of %q", input.Element))
	}

	out := &elementLinksOutput{}
	out.Body.Layers = make([][]NeighborView, 0, len(layers))
	for _, layer := range layers {
		views := make([]NeighborView, 0, len(layer))
		for _, n := range layer {
			views = append(views, NeighborView{Element: n.Element, Score: n.Score})
		}
		out.Body.Layers = append(out.Body.Layers, views)
	}
	return out, nil
}

func (s *Server) handleGetElementAttributes(ctx context.Context, input *elementInput) (*getAttributesOutput, error) {
	raw, err := s.services.store.GetAttribute(ctx, input.Set, input.Element)
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("reading attributes of %q", input.Element))
	}
	out := &getAttributesOutput{}
	out.Body.Attributes = raw
	return out, nil
}

func (s *Server) handleSetElementAttributes(ctx context.Context, input *setAttributesInput) (*statusOutput, error) {
	raw := input.Body.Attributes
	if raw != "" && !json.Valid([]byte(raw)) {
		return nil, apiError(vserr.New(vserr.CodeStoreAttributeInvalid, "attributes must be valid JSON"),
			"invalid attributes")
	}

	if err := s.services.store.SetAttribute(ctx, input.Set, input.Element, raw); err != nil {
		return nil, apiError(err, fmt.Sprintf("writing attributes of %q", input.Element))
	}
	s.services.overwriteAttribute(input.Element, raw)
	return actionStatus("updated"), nil
}

func (s *Server) handleRemoveElement(ctx context.Context, input *elementInput) (*statusOutput, error) {
	if err := s.services.store.Remove(ctx, input.Set, input.Element); err != nil {
		return nil, apiError(err, fmt.Sprintf("removing element %q", input.Element))
	}
	return actionStatus("removed"), nil
}

func (s *Server) handleListPrefs(ctx context.Context, _ *struct{}) (*listPrefsOutput, error) {
	all, err := s.services.prefs.All(ctx)
	if err != nil {
		return nil, apiError(err, "reading preferences")
	}
	out := &listPrefsOutput{}
	out.Body.Prefs = all
	return out, nil
}

func (s *Server) handleSetPref(ctx context.Context, input *setPrefInput) (*statusOutput, error) {
	if err := s.services.prefs.Set(ctx, input.Key, input.Body.Value); err != nil {
		return nil, apiError(err, fmt.Sprintf("writing preference %q", input.Key))
	}
	return actionStatus("updated"), nil
}

// --- View helpers ---

func matchViews(matches []vecstore.Match) []MatchView {
	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, MatchView{
			Element:    m.Element,
			Score:      m.Score,
			Vector:     m.Vector,
			Attributes: m.Attributes,
		})
	}
	return views
}

func jobView(j vecstore.Job) JobView {
	return JobView{
		ID:        j.ID,
		Set:       j.VectorSet,
		Status:    string(j.Status),
		Total:     j.Total,
		Done:      j.Done,
		Filename:  j.Filename,
		CreatedAt: j.CreatedAt,
		PausedAt:  j.PausedAt,
		Error:     j.Error,
	}
}

func actionStatus(status string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = status
	return out
}
