package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/query"
)

// TeeTimes searches tee times. Malformed parameters are rejected before any
// query runs.
func (h *Handler) TeeTimes(c echo.Context) error {
	f, err := query.Parse(c.QueryParams(), h.log)
	if err != nil {
		var ve *query.ValidationError
		if errors.As(err, &ve) {
			return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	page, err := h.store.Search(c.Request().Context(), f)
	if err != nil {
		h.log.Error("search failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, page)
}

// Courses returns the sorted course names.
func (h *Handler) Courses(c echo.Context) error {
	names, err := h.store.CourseNames(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, names)
}
