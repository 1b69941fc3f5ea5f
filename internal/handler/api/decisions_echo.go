package api

import (
	"context"
	"errors"
	"time"

	models "TradeGate/internal/domain/models"
	"TradeGate/internal/service/ratelimit"
	"TradeGate/internal/services/scalp"
	"TradeGate/internal/usecase"
	xhttp "TradeGate/pkg/http"
	xlogger "TradeGate/pkg/logger"
	xutil "TradeGate/pkg/util"

	"github.com/labstack/echo/v4"
)

// DecisionsEchoHandler exposes the decision core over HTTP.
type DecisionsEchoHandler struct {
	logger     *xlogger.Logger
	orch       *usecase.Orchestrator
	learner    *usecase.Learner
	closes     *usecase.TradeCloseHandler
	ticks      *usecase.TickHandler
	dispatcher *usecase.Dispatcher
	scalps     *scalp.Manager
	rl         *ratelimit.Limiter
}

func NewDecisionsEchoHandler(
	logger *xlogger.Logger,
	orch *usecase.Orchestrator,
	learner *usecase.Learner,
	closes *usecase.TradeCloseHandler,
	ticks *usecase.TickHandler,
	dispatcher *usecase.Dispatcher,
	scalps *scalp.Manager,
) *DecisionsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DecisionsEchoHandler{
		logger:     logger.Component("api"),
		orch:       orch,
		learner:    learner,
		closes:     closes,
		ticks:      ticks,
		dispatcher: dispatcher,
		scalps:     scalps,
		rl:         ratelimit.New(),
	}
}

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/decisions", h.Decide)
	g.POST("/ticks", h.Tick)
	g.POST("/outcomes", h.Outcome)
	g.POST("/learner/flush", h.Flush, h.adminLimit)
	g.GET("/regimes/:regime", h.Regime)
	g.POST("/regimes/:regime/freeze", h.Freeze, h.adminLimit)
	g.POST("/regimes/:regime/unfreeze", h.Unfreeze, h.adminLimit)
	g.GET("/regimes/:regime/snapshots", h.Snapshots)
	g.POST("/snapshots/:id/rollback", h.Rollback, h.adminLimit)
	g.GET("/scalps/:symbol", h.Scalp)
	g.GET("/capital/history", h.CapitalHistory)
}

// adminLimit throttles state-changing admin endpoints per client.
func (h *DecisionsEchoHandler) adminLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.rl.Allow(c.RealIP()+":"+c.Path(), 5, 1) {
			h.logger.Warn("admin endpoint rate limited",
				xlogger.String("remote", c.RealIP()),
				xlogger.String("route", c.Path()),
			)
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("admin endpoint rate limited"))
		}
		return next(c)
	}
}

func (h *DecisionsEchoHandler) Decide(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := xutil.NormalizeSymbol(req.Symbol)
	p := models.Proposal{Symbol: symbol, Side: models.Side(req.Side), EntryPriceHint: req.EntryPriceHint}
	hour := xutil.HourOf(req.Time)
	if req.Hour != nil {
		hour = *req.Hour
	} else if hour < 0 {
		hour = time.Now().UTC().Hour()
	}
	mc := models.MarketContext{
		Regime:               req.Regime,
		Hour:                 hour,
		GlobalConfidence:     req.GlobalConfidence,
		EnsembleDisagreement: req.EnsembleDisagreement,
		LiquidityStrength:    req.LiquidityStrength,
		TransitionActive:     req.TransitionActive,
		DailyProfit:          req.DailyProfit,
		Time:                 req.Time,
	}

	var dec models.SizingDecision
	err := h.dispatcher.Submit(c.Request().Context(), symbol, func(ctx context.Context) error {
		var derr error
		dec, derr = h.orch.Decide(ctx, p, mc)
		return derr
	})
	if err != nil {
		h.logger.Error("decide failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, dec)
}

func (h *DecisionsEchoHandler) Tick(c echo.Context) error {
	req := &models.TickRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.ticks.Apply(c.Request().Context(), models.Tick{
		Symbol: xutil.NormalizeSymbol(req.Symbol),
		Price:  req.Price,
		High:   req.High,
		Low:    req.Low,
		Time:   req.Time,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

type outcomeResponse struct {
	Accepted bool                 `json:"accepted"`
	Pending  int                  `json:"pending"`
	Flush    *usecase.FlushResult `json:"flush,omitempty"`
}

func (h *DecisionsEchoHandler) Outcome(c echo.Context) error {
	req := &models.TradeCloseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.closes.Process(c.Request().Context(), models.TradeClose{
		Symbol:    xutil.NormalizeSymbol(req.Symbol),
		PnL:       req.PnL,
		EntryTime: req.EntryTime,
		CloseTime: req.CloseTime,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, outcomeResponse{Accepted: true, Pending: h.learner.Pending(), Flush: res})
}

func (h *DecisionsEchoHandler) Flush(c echo.Context) error {
	res, err := h.learner.Flush(c.Request().Context())
	if err != nil {
		h.logger.Error("manual flush failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DecisionsEchoHandler) Regime(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.learner.Stats(c.Param("regime")))
}

func (h *DecisionsEchoHandler) Freeze(c echo.Context) error {
	regime := c.Param("regime")
	h.learner.Freeze(regime)
	return xhttp.SuccessResponse(c, h.learner.Stats(regime))
}

func (h *DecisionsEchoHandler) Unfreeze(c echo.Context) error {
	regime := c.Param("regime")
	h.learner.Unfreeze(regime)
	return xhttp.SuccessResponse(c, h.learner.Stats(regime))
}

func (h *DecisionsEchoHandler) Snapshots(c echo.Context) error {
	snaps := h.learner.Snapshots(c.Param("regime"))
	return xhttp.ListResponse(c, snaps, int64(len(snaps)))
}

func (h *DecisionsEchoHandler) Rollback(c echo.Context) error {
	snap, err := h.learner.Rollback(c.Request().Context(), c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	snap.Table = nil
	return xhttp.SuccessResponse(c, snap)
}

type scalpResponse struct {
	Position *models.ScalpPosition  `json:"position,omitempty"`
	Cooldown *models.CooldownWindow `json:"cooldown,omitempty"`
	History  []models.ScalpPosition `json:"history"`
}

func (h *DecisionsEchoHandler) Scalp(c echo.Context) error {
	symbol := xutil.NormalizeSymbol(c.Param("symbol"))
	out := scalpResponse{History: h.scalps.History(symbol)}
	if pos, err := h.scalps.Position(symbol); err == nil {
		out.Position = &pos
	}
	if cd, ok := h.scalps.Cooldown(symbol, xutil.ParseTimeDefault(c.QueryParam("at"), time.Now().UTC())); ok {
		out.Cooldown = &cd
	}
	if out.Position == nil && out.Cooldown == nil && len(out.History) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no scalp activity for %s", symbol))
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *DecisionsEchoHandler) CapitalHistory(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.orch.CapitalHistory(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// toAppError maps domain errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var denied *models.ValidationDenied
	switch {
	case errors.Is(err, models.ErrSnapshotNotFound),
		errors.Is(err, models.ErrNoPosition),
		errors.Is(err, models.ErrUnknownDecision):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrAlreadyOpen), errors.Is(err, models.ErrCooldownActive):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInvalidOutcome):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.As(err, &denied):
		return xhttp.UnprocessableError(err.Error()).WithParam("check", denied.Check).WithError(err)
	case errors.Is(err, usecase.ErrDispatcherClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError(err.Error()).WithError(err)
	}
}
