package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/pkg/serverutils"
	"ai-plugin-engine/pkg/rag/collab"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/rag/executor"
	"ai-plugin-engine/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueryService struct {
	streamErr error
	prepared  int
}

func (f *fakeQueryService) PrepareQuery(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.QueryRequest) (*executor.QueryRequest, error) {
	f.prepared++
	if slug != "tenancy-law" {
		return nil, engineerr.AccessDenied("service.ResolveProfile", "plugin %q not found", slug)
	}
	return &executor.QueryRequest{Query: req.Query}, nil
}

func (f *fakeQueryService) RunQuery(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.QueryRequest) (*executor.QueryResult, error) {
	if _, err := f.PrepareQuery(ctx, slug, callerId, req); err != nil {
		return nil, err
	}
	return &executor.QueryResult{PluginSlug: slug, Answer: "Two months of rent [1].", Confidence: entity.ConfidenceHigh}, nil
}

func (f *fakeQueryService) StreamQuery(ctx context.Context, prepared *executor.QueryRequest, sink stream.Sink) error {
	if err := stream.Emit(ctx, sink, stream.KindDelta, "Two months"); err != nil {
		return err
	}
	return f.streamErr
}

func (f *fakeQueryService) PrepareReview(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.ReviewRequest) (*executor.ReviewRequest, error) {
	return &executor.ReviewRequest{Document: req.Document}, nil
}

func (f *fakeQueryService) RunReview(ctx context.Context, slug string, callerId *uuid.UUID, req *dto.ReviewRequest) (*executor.ReviewResult, error) {
	return &executor.ReviewResult{PluginSlug: slug, Title: req.Title}, nil
}

func (f *fakeQueryService) StreamReview(ctx context.Context, prepared *executor.ReviewRequest, sink stream.Sink) error {
	return stream.Emit(ctx, sink, stream.KindSummary, entity.ReviewSummary{})
}

type fakeProfiles struct{ plugin *entity.Plugin }

func (f *fakeProfiles) Resolve(ctx context.Context, slug string) (*executor.Profile, error) {
	if slug != f.plugin.Slug {
		return nil, engineerr.AccessDenied("service.ResolveProfile", "plugin %q not found", slug)
	}
	return &executor.Profile{Plugin: f.plugin}, nil
}

func (f *fakeProfiles) Invalidate(slug string) {}

type fakePublisher struct{ jobs []dto.IngestDocumentMessage }

func (f *fakePublisher) PublishIngest(ctx context.Context, msg dto.IngestDocumentMessage) error {
	f.jobs = append(f.jobs, msg)
	return nil
}

type fakeIngestion struct{}

func (fakeIngestion) Ingest(ctx context.Context, documentId uuid.UUID) (*dto.IngestResponse, error) {
	return &dto.IngestResponse{DocumentId: documentId}, nil
}

func (fakeIngestion) DeleteChunks(ctx context.Context, documentId uuid.UUID) (*dto.DeleteChunksResponse, error) {
	return &dto.DeleteChunksResponse{DocumentId: documentId, Deleted: 4}, nil
}

type fakeCollaborations struct {
	sessions map[uuid.UUID]*dto.CollaborationSessionResponse
}

func (f *fakeCollaborations) Prepare(ctx context.Context, callerId *uuid.UUID, req *dto.CollaborationRequest) (collab.Config, error) {
	return collab.Validate(collab.Config{Experts: req.Experts, Query: req.Query, Mode: entity.CollaborationMode(req.Mode), MaxRounds: req.MaxRounds})
}

func (f *fakeCollaborations) Run(ctx context.Context, cfg collab.Config) (*collab.Result, error) {
	return &collab.Result{SessionId: cfg.SessionId, Status: entity.SessionComplete, Mode: cfg.Mode}, nil
}

func (f *fakeCollaborations) Stream(ctx context.Context, cfg collab.Config, sink stream.Sink) error {
	return stream.Emit(ctx, sink, stream.KindSession, collab.SessionEvent{SessionId: cfg.SessionId})
}

func (f *fakeCollaborations) Get(ctx context.Context, id uuid.UUID) (*dto.CollaborationSessionResponse, error) {
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, engineerr.AccessDenied("service.Collaboration", "collaboration session %s not found", id)
}

func noAuth(ctx *fiber.Ctx) error { return ctx.Next() }

type testApp struct {
	app       *fiber.App
	query     *fakeQueryService
	publisher *fakePublisher
	sessionId uuid.UUID
	pluginId  uuid.UUID
}

func newTestApp() *testApp {
	ta := &testApp{query: &fakeQueryService{}, publisher: &fakePublisher{}, sessionId: uuid.New(), pluginId: uuid.New()}
	profiles := &fakeProfiles{plugin: &entity.Plugin{Id: ta.pluginId, Slug: "tenancy-law", IsActive: true}}
	collabs := &fakeCollaborations{sessions: map[uuid.UUID]*dto.CollaborationSessionResponse{
		ta.sessionId: {SessionId: ta.sessionId, Status: entity.SessionComplete},
	}}

	ta.app = fiber.New()
	ta.app.Use(serverutils.ErrorHandlerMiddleware())
	api := ta.app.Group("/api")
	NewPluginController(ta.query, profiles, ta.publisher, fakeIngestion{}).RegisterRoutes(api, noAuth)
	NewCollaborationController(collabs).RegisterRoutes(api, noAuth)
	return ta
}

func (ta *testApp) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestPluginController_Query(t *testing.T) {
	ta := newTestApp()

	tests := []struct {
		name     string
		path     string
		body     string
		status   int
		contains string
	}{
		{name: "answered", path: "/api/plugins/tenancy-law/query", body: `{"query":"How big can a deposit be?"}`, status: 200, contains: `"confidence":"high"`},
		{name: "unknown plugin", path: "/api/plugins/nope/query", body: `{"query":"q"}`, status: 404, contains: "access_denied"},
		{name: "empty query", path: "/api/plugins/tenancy-law/query", body: `{"query":""}`, status: 400, contains: "validation_error"},
		{name: "query too long", path: "/api/plugins/tenancy-law/query", body: `{"query":"` + strings.Repeat("a", 4001) + `"}`, status: 400, contains: "at most 4000"},
		{name: "bad history role", path: "/api/plugins/tenancy-law/query", body: `{"query":"q","history":[{"role":"system","content":"x"}]}`, status: 400},
		{name: "malformed body", path: "/api/plugins/tenancy-law/query", body: `{`, status: 400, contains: "malformed request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ta.do(t, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			if tt.contains != "" {
				assert.Contains(t, body, tt.contains)
			}
		})
	}
}

func TestPluginController_QueryStream(t *testing.T) {
	t.Run("streams events then done", func(t *testing.T) {
		ta := newTestApp()
		resp, body := ta.do(t, "POST", "/api/plugins/tenancy-law/query/stream", `{"query":"deposit?"}`)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "event: delta")
		assert.Contains(t, body, "event: done")
		assert.Equal(t, 1, strings.Count(body, "event: done"))
	})

	t.Run("mid-stream failure ends with error event", func(t *testing.T) {
		ta := newTestApp()
		ta.query.streamErr = engineerr.New(engineerr.KindGeneration, "executor.Query", "model unavailable")
		_, body := ta.do(t, "POST", "/api/plugins/tenancy-law/query/stream", `{"query":"deposit?"}`)
		assert.Contains(t, body, "event: error")
		assert.Contains(t, body, "generation_error")
		assert.NotContains(t, body, "event: done")
	})

	t.Run("access errors are reported before streaming", func(t *testing.T) {
		ta := newTestApp()
		resp, body := ta.do(t, "POST", "/api/plugins/nope/query/stream", `{"query":"deposit?"}`)
		assert.Equal(t, 404, resp.StatusCode)
		assert.NotContains(t, body, "event:")
	})
}

func TestPluginController_Review(t *testing.T) {
	ta := newTestApp()

	resp, body := ta.do(t, "POST", "/api/plugins/tenancy-law/review", `{"document":"The tenant pays three months deposit.","title":"Lease"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"title":"Lease"`)

	resp, _ = ta.do(t, "POST", "/api/plugins/tenancy-law/review", `{"document":"`+strings.Repeat("a", 100001)+`"}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, body = ta.do(t, "POST", "/api/plugins/tenancy-law/review/stream", `{"document":"text"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, "event: summary")
}

func TestPluginController_Documents(t *testing.T) {
	ta := newTestApp()
	docId := uuid.New()

	resp, _ := ta.do(t, "POST", "/api/plugins/tenancy-law/documents/"+docId.String()+"/ingest", "")
	assert.Equal(t, 202, resp.StatusCode)
	require.Len(t, ta.publisher.jobs, 1)
	assert.Equal(t, dto.IngestDocumentMessage{DocumentId: docId, PluginId: ta.pluginId}, ta.publisher.jobs[0])

	resp, _ = ta.do(t, "POST", "/api/plugins/tenancy-law/documents/not-a-uuid/ingest", "")
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = ta.do(t, "POST", "/api/plugins/nope/documents/"+docId.String()+"/ingest", "")
	assert.Equal(t, 404, resp.StatusCode)

	resp, body := ta.do(t, "DELETE", "/api/plugins/tenancy-law/documents/"+docId.String()+"/chunks", "")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `"deleted":4`)
}

func TestCollaborationController(t *testing.T) {
	ta := newTestApp()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "run", method: "POST", path: "/api/collaborations", body: `{"experts":["tenancy-law","finance"],"query":"deposit?"}`, status: 200},
		{name: "one expert", method: "POST", path: "/api/collaborations", body: `{"experts":["tenancy-law"],"query":"deposit?"}`, status: 400},
		{name: "six experts", method: "POST", path: "/api/collaborations", body: `{"experts":["a","b","c","d","e","f"],"query":"q"}`, status: 400},
		{name: "duplicate experts", method: "POST", path: "/api/collaborations", body: `{"experts":["a","a"],"query":"q"}`, status: 400},
		{name: "unknown mode", method: "POST", path: "/api/collaborations", body: `{"experts":["a","b"],"query":"q","mode":"vote"}`, status: 400},
		{name: "show", method: "GET", path: "/api/collaborations/" + ta.sessionId.String(), status: 200},
		{name: "show unknown", method: "GET", path: "/api/collaborations/" + uuid.NewString(), status: 404},
		{name: "show bad id", method: "GET", path: "/api/collaborations/xyz", status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ta.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
		})
	}

	resp, body := ta.do(t, "POST", "/api/collaborations/stream", `{"experts":["tenancy-law","finance"],"query":"deposit?"}`)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, "event: session")
	assert.Contains(t, body, "event: done")
}

func TestStreamSSE_RunErrorWithoutEvents(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(ctx *fiber.Ctx) error {
		return streamSSE(ctx, func(ctx context.Context, sink stream.Sink) error {
			return errors.New("boom")
		})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "event: error")
	assert.Contains(t, string(raw), "internal_error")
}
