package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// BondQueries defines the bond reads needed by the handler.
type BondQueries interface {
	BondsByDate(ctx context.Context, businessDate time.Time, bondType string) ([]model.Bond, error)
	BondByISIN(ctx context.Context, isin string) (*model.Bond, error)
	YieldHistory(ctx context.Context, isin string) ([]model.YieldHistoryPoint, error)
	ListBusinessDates(ctx context.Context) ([]time.Time, error)
	SummaryStats(ctx context.Context) (*model.BondSummary, error)
}

// BondHandler serves the daily close-price data behind the curves.
type BondHandler struct {
	logger *zap.Logger
	bonds  BondQueries
}

func NewBondHandler(logger *zap.Logger, bonds BondQueries) *BondHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BondHandler{logger: logger, bonds: bonds}
}

func (h *BondHandler) internal(c *fiber.Ctx, event string, err error) error {
	h.logger.Error(event, zap.Error(err))
	return errorJSON(c, fiber.StatusInternalServerError, "bond data unavailable")
}

// ListBonds handles GET /api/v1/bonds?date=&type=.
func (h *BondHandler) ListBonds(c *fiber.Ctx) error {
	var q BondsQuery
	if err := c.QueryParser(&q); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if err := q.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	date, err := parseBusinessDate(q.Date)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	rows, err := h.bonds.BondsByDate(c.UserContext(), date, q.Type)
	if err != nil {
		return h.internal(c, "api.bonds.list_failed", err)
	}
	out := make([]BondRow, len(rows))
	for i, b := range rows {
		out[i] = toBondRow(b)
	}
	return c.JSON(out)
}

// GetBond handles GET /api/v1/bonds/:isin.
func (h *BondHandler) GetBond(c *fiber.Ctx) error {
	b, err := h.bonds.BondByISIN(c.UserContext(), c.Params("isin"))
	if err != nil {
		return h.internal(c, "api.bonds.get_failed", err)
	}
	if b == nil {
		return errorJSON(c, fiber.StatusNotFound, "bond not found")
	}
	return c.JSON(b)
}

// YieldHistory handles GET /api/v1/bonds/:isin/history.
func (h *BondHandler) YieldHistory(c *fiber.Ctx) error {
	hist, err := h.bonds.YieldHistory(c.UserContext(), c.Params("isin"))
	if err != nil {
		return h.internal(c, "api.bonds.history_failed", err)
	}
	if len(hist) == 0 {
		return errorJSON(c, fiber.StatusNotFound, "bond not found")
	}
	return c.JSON(hist)
}

// ListDates handles GET /api/v1/dates.
func (h *BondHandler) ListDates(c *fiber.Ctx) error {
	dates, err := h.bonds.ListBusinessDates(c.UserContext())
	if err != nil {
		return h.internal(c, "api.dates.list_failed", err)
	}
	return c.JSON(fiber.Map{"dates": formatDates(dates)})
}

// Stats handles GET /api/v1/stats.
func (h *BondHandler) Stats(c *fiber.Ctx) error {
	s, err := h.bonds.SummaryStats(c.UserContext())
	if err != nil {
		return h.internal(c, "api.stats.failed", err)
	}
	return c.JSON(toSummaryResponse(s))
}
