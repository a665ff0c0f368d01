package controller

import (
	"context"

	"ai-plugin-engine/internal/dto"
	"ai-plugin-engine/internal/pkg/serverutils"
	"ai-plugin-engine/internal/service"
	"ai-plugin-engine/pkg/rag/engineerr"
	"ai-plugin-engine/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IPluginController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Query(ctx *fiber.Ctx) error
	QueryStream(ctx *fiber.Ctx) error
	Review(ctx *fiber.Ctx) error
	ReviewStream(ctx *fiber.Ctx) error
	Ingest(ctx *fiber.Ctx) error
	DeleteChunks(ctx *fiber.Ctx) error
}

type pluginController struct {
	queryService     service.IQueryService
	profileService   service.IProfileService
	publisherService service.IPublisherService
	ingestionService service.IIngestionService
}

func NewPluginController(
	queryService service.IQueryService,
	profileService service.IProfileService,
	publisherService service.IPublisherService,
	ingestionService service.IIngestionService,
) IPluginController {
	return &pluginController{
		queryService:     queryService,
		profileService:   profileService,
		publisherService: publisherService,
		ingestionService: ingestionService,
	}
}

func (c *pluginController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/plugins/:slug", jwtMiddleware)
	h.Post("query", c.Query)
	h.Post("query/stream", c.QueryStream)
	h.Post("review", c.Review)
	h.Post("review/stream", c.ReviewStream)
	h.Post("documents/:documentId/ingest", c.Ingest)
	h.Delete("documents/:documentId/chunks", c.DeleteChunks)
}

func parseBody(ctx *fiber.Ctx, req interface{}) error {
	if err := ctx.BodyParser(req); err != nil {
		return engineerr.Validation("http.BodyParser", "malformed request body: %v", err)
	}
	return serverutils.ValidateRequest(req)
}

func documentIdParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("documentId"))
	if err != nil {
		return uuid.Nil, engineerr.Validation("http.documentId", "invalid document id %q", ctx.Params("documentId"))
	}
	return id, nil
}

// Query answers one question with the plugin's knowledge base
// @Summary Query a plugin
// @Tags Plugins
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param slug path string true "Plugin slug"
// @Success 200 {object} executor.QueryResult
// @Router /api/plugins/{slug}/query [post]
func (c *pluginController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.queryService.RunQuery(ctx.UserContext(), ctx.Params("slug"), serverutils.CallerId(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Query answered", res))
}

func (c *pluginController) QueryStream(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	prepared, err := c.queryService.PrepareQuery(ctx.UserContext(), ctx.Params("slug"), serverutils.CallerId(ctx), &req)
	if err != nil {
		return err
	}

	return streamSSE(ctx, func(runCtx context.Context, sink stream.Sink) error {
		return c.queryService.StreamQuery(runCtx, prepared, sink)
	})
}

// Review annotates a document against the plugin's knowledge base
// @Summary Review a document
// @Tags Plugins
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param slug path string true "Plugin slug"
// @Success 200 {object} executor.ReviewResult
// @Router /api/plugins/{slug}/review [post]
func (c *pluginController) Review(ctx *fiber.Ctx) error {
	var req dto.ReviewRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.queryService.RunReview(ctx.UserContext(), ctx.Params("slug"), serverutils.CallerId(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Document reviewed", res))
}

func (c *pluginController) ReviewStream(ctx *fiber.Ctx) error {
	var req dto.ReviewRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	prepared, err := c.queryService.PrepareReview(ctx.UserContext(), ctx.Params("slug"), serverutils.CallerId(ctx), &req)
	if err != nil {
		return err
	}

	return streamSSE(ctx, func(runCtx context.Context, sink stream.Sink) error {
		return c.queryService.StreamReview(runCtx, prepared, sink)
	})
}

// Ingest queues a document for chunking and embedding
// @Summary Queue document ingestion
// @Tags Documents
// @Security BearerAuth
// @Param slug path string true "Plugin slug"
// @Param documentId path string true "Document ID"
// @Success 202 {object} dto.IngestDocumentMessage
// @Router /api/plugins/{slug}/documents/{documentId}/ingest [post]
func (c *pluginController) Ingest(ctx *fiber.Ctx) error {
	documentId, err := documentIdParam(ctx)
	if err != nil {
		return err
	}
	profile, err := c.profileService.Resolve(ctx.UserContext(), ctx.Params("slug"))
	if err != nil {
		return err
	}

	job := dto.IngestDocumentMessage{DocumentId: documentId, PluginId: profile.Plugin.Id}
	if err := c.publisherService.PublishIngest(ctx.UserContext(), job); err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Ingestion queued", job))
}

func (c *pluginController) DeleteChunks(ctx *fiber.Ctx) error {
	documentId, err := documentIdParam(ctx)
	if err != nil {
		return err
	}
	if _, err := c.profileService.Resolve(ctx.UserContext(), ctx.Params("slug")); err != nil {
		return err
	}

	res, err := c.ingestionService.DeleteChunks(ctx.UserContext(), documentId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Chunks deleted", res))
}
