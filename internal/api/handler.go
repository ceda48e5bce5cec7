package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/curve"
	"github.com/Checker-Finance/yieldcurve/internal/service"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// CurveService defines the curve operations needed by the handler.
type CurveService interface {
	GetCurve(ctx context.Context, businessDate time.Time) (*model.Curve, error)
	GenerateCurve(ctx context.Context, businessDate time.Time, opts service.GenerateOptions) (*model.CurveResult, error)
	ListCurveDates(ctx context.Context) ([]time.Time, error)
}

// CurveHandler serves stored and generated curves.
type CurveHandler struct {
	logger  *zap.Logger
	service CurveService
}

func NewCurveHandler(logger *zap.Logger, svc CurveService) *CurveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurveHandler{logger: logger, service: svc}
}

func errorJSON(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, curve.ErrUnsupportedMethod):
		return fiber.StatusBadRequest
	case errors.Is(err, curve.ErrNoObservations):
		return fiber.StatusNotFound
	case errors.Is(err, curve.ErrInsufficientData):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *CurveHandler) fail(c *fiber.Ctx, event, date string, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		h.logger.Error(event, zap.String("business_date", date), zap.Error(err))
		return errorJSON(c, code, "curve unavailable")
	}
	h.logger.Info(event, zap.String("business_date", date), zap.Error(err))
	return errorJSON(c, code, err.Error())
}

// ListCurveDates handles GET /api/v1/curves.
func (h *CurveHandler) ListCurveDates(c *fiber.Ctx) error {
	dates, err := h.service.ListCurveDates(c.UserContext())
	if err != nil {
		return h.fail(c, "api.curves.list_failed", "", err)
	}
	return c.JSON(CurveDatesResponse{Dates: formatDates(dates)})
}

// GetCurve handles GET /api/v1/curves/:date. It never generates.
func (h *CurveHandler) GetCurve(c *fiber.Ctx) error {
	date, err := parseBusinessDate(c.Params("date"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	cv, err := h.service.GetCurve(c.UserContext(), date)
	if err != nil {
		return h.fail(c, "api.curves.get_failed", c.Params("date"), err)
	}
	if cv == nil {
		return errorJSON(c, fiber.StatusNotFound, "no yield curve for date")
	}
	return c.JSON(toCurveResponse(cv))
}

// GenerateCurve handles POST /api/v1/curves/:date/generate.
func (h *CurveHandler) GenerateCurve(c *fiber.Ctx) error {
	date, err := parseBusinessDate(c.Params("date"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	var req GenerateRequest
	if err := c.QueryParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	force, err := req.force()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	res, err := h.service.GenerateCurve(c.UserContext(), date, service.GenerateOptions{
		Method: req.Method,
		Force:  force,
	})
	if err != nil {
		return h.fail(c, "api.curves.generate_failed", c.Params("date"), err)
	}

	code := fiber.StatusOK
	if res.Generated {
		code = fiber.StatusCreated
	}
	return c.Status(code).JSON(toCurveResultResponse(res))
}

// YieldCurve handles GET /api/v1/yield-curve?date=, generating on first request.
func (h *CurveHandler) YieldCurve(c *fiber.Ctx) error {
	raw := c.Query("date")
	date, err := parseBusinessDate(raw)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	res, err := h.service.GenerateCurve(c.UserContext(), date, service.GenerateOptions{})
	if err != nil {
		return h.fail(c, "api.yield_curve.failed", raw, err)
	}
	return c.JSON(toLegacyResponse(res.Curve))
}
