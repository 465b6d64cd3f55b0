package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IProgressController interface {
	RegisterRoutes(r fiber.Router)
	ListGaps(ctx *fiber.Ctx) error
	ResolveGap(ctx *fiber.Ctx) error
}

type progressController struct {
	service service.IProgressService
}

func NewProgressController(service service.IProgressService) IProgressController {
	return &progressController{service: service}
}

func (c *progressController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/users")
	h.Get(":id/gaps", c.ListGaps)
	h.Post(":id/gaps/resolve", c.ResolveGap)
}

func (c *progressController) ListGaps(ctx *fiber.Ctx) error {
	userID := ctx.Params("id")
	var q dto.GapListQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	gaps, err := c.service.ListGaps(ctx.UserContext(), userID, q)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list gaps", &dto.GapListResponse{
		UserId: userID,
		Gaps:   gaps,
	}))
}

func (c *progressController) ResolveGap(ctx *fiber.Ctx) error {
	var req dto.ResolveGapRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	ok, err := c.service.Resolve(ctx.UserContext(), ctx.Params("id"), req.Concept)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resolve gap", &dto.ResolveGapResponse{
		Concept:  req.Concept,
		Resolved: ok,
	}))
}
