package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quantfold/dealdesk/internal/store"
)

// WebsitesHandler lists the partner websites visible to the current user.
type WebsitesHandler struct {
	Store *store.Store
}

func (h *WebsitesHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("/user", h.listForUser)
}

// List user websites
//
//	@Summary	Get websites accessible by current user
//	@Tags		websites
//	@Produce	json
//	@Success	200	{object}	WebsiteListResponse
//	@Failure	401	{object}	HTTPError
//	@Router		/api/websites/user [get]
func (h *WebsitesHandler) listForUser(c echo.Context) error {
	sites, err := h.Store.ListWebsitesForUser(c.Request().Context(), currentUserID(c), currentRole(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, WebsiteListResponse{Websites: sites, Total: len(sites)})
}
