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

type ICollaborationController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Create(ctx *fiber.Ctx) error
	CreateStream(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type collaborationController struct {
	collaborationService service.ICollaborationService
}

func NewCollaborationController(collaborationService service.ICollaborationService) ICollaborationController {
	return &collaborationController{collaborationService: collaborationService}
}

func (c *collaborationController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/collaborations", jwtMiddleware)
	h.Post("", c.Create)
	h.Post("stream", c.CreateStream)
	h.Get(":id", c.Show)
}

// Create runs a multi-expert collaboration to completion
// @Summary Run a collaboration
// @Tags Collaborations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 200 {object} collab.Result
// @Router /api/collaborations [post]
func (c *collaborationController) Create(ctx *fiber.Ctx) error {
	var req dto.CollaborationRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	cfg, err := c.collaborationService.Prepare(ctx.UserContext(), serverutils.CallerId(ctx), &req)
	if err != nil {
		return err
	}
	res, err := c.collaborationService.Run(ctx.UserContext(), cfg)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Collaboration complete", res))
}

func (c *collaborationController) CreateStream(ctx *fiber.Ctx) error {
	var req dto.CollaborationRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	cfg, err := c.collaborationService.Prepare(ctx.UserContext(), serverutils.CallerId(ctx), &req)
	if err != nil {
		return err
	}

	return streamSSE(ctx, func(runCtx context.Context, sink stream.Sink) error {
		return c.collaborationService.Stream(runCtx, cfg, sink)
	})
}

func (c *collaborationController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return engineerr.Validation("http.sessionId", "invalid session id %q", ctx.Params("id"))
	}

	res, err := c.collaborationService.Get(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Collaboration session", res))
}
