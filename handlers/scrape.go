package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/pipeline"
	"github.com/ze-codes/tee-time-scraper/reconcile"
)

type scrapeResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

type expireResponse struct {
	Expired int                      `json:"expired"`
	Courses []reconcile.CourseResult `json:"courses"`
}

// Scrape starts a background scrape of ?source= (default all).
func (h *Handler) Scrape(c echo.Context) error {
	name := c.QueryParam("source")
	if name == "" {
		name = pipeline.AllSources
	}

	id, err := h.runner.Trigger(name)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownSource) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, pipeline.ErrShuttingDown) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.log.Info("scrape triggered", zap.String("source", name), zap.String("run_id", id.String()))
	return c.JSON(http.StatusAccepted, scrapeResponse{
		Message: "scrape started for " + name,
		RunID:   id.String(),
	})
}

// Expire runs the expiration pass now and reports per-course counts.
func (h *Handler) Expire(c echo.Context) error {
	res, err := h.runner.Expire(c.Request().Context())
	if err != nil {
		h.log.Error("expire failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	courses := res.Courses
	if courses == nil {
		courses = []reconcile.CourseResult{}
	}
	return c.JSON(http.StatusOK, expireResponse{Expired: res.Total().Expired, Courses: courses})
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
