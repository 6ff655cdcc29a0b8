package server

import (
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/quantfold/dealdesk/internal/partner"
	"github.com/quantfold/dealdesk/internal/partner/session"
	"github.com/quantfold/dealdesk/internal/store"
)

// PartnerHandler exposes the credential-exchange flow: submit partner-site
// credentials for a website, get back a session handle plus normalized
// deals, and stream file downloads through a previously issued session.
type PartnerHandler struct {
	Store    *store.Store
	Registry *session.Registry
	Opts     partner.ClientOptions
	Logger   *log.Logger

	// newClient builds the partner client for a website id; swapped in
	// tests to point at a stub partner server.
	newClient func(websiteID string) (*partner.Client, error)
}

func NewPartnerHandler(st *store.Store, registry *session.Registry, opts partner.ClientOptions, logger *log.Logger) *PartnerHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[PARTNER] ", log.LstdFlags)
	}
	h := &PartnerHandler{Store: st, Registry: registry, Opts: opts, Logger: logger}
	h.newClient = func(websiteID string) (*partner.Client, error) {
		return partner.NewClient(websiteID, opts, logger)
	}
	return h
}

func (h *PartnerHandler) Register(api *echo.Group, secret []byte) {
	// Downloads carry only the opaque session handle, no app JWT: the
	// handle itself is the capability.
	api.GET("/partner/download", h.download)

	g := api.Group("/partner")
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("/login", h.login)
}

// Partner login
//
//	@Summary		Submit partner-site credentials
//	@Description	Authenticates against the partner site, verifies the session, fetches and normalizes deals
//	@Tags			partner
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		PartnerLoginRequest	true	"Credentials payload"
//	@Success		200		{object}	PartnerLoginResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		401		{object}	HTTPError
//	@Failure		403		{object}	HTTPError
//	@Failure		404		{object}	HTTPError
//	@Failure		502		{object}	HTTPError
//	@Router			/api/partner/login [post]
func (h *PartnerHandler) login(c echo.Context) error {
	var req PartnerLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	websiteID := strings.ToLower(strings.TrimSpace(req.Website))
	if websiteID == "" || req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing login fields")
	}

	ctx := c.Request().Context()
	site, err := h.Store.GetWebsiteByWebsiteID(ctx, websiteID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("website '%s' not found", websiteID))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Admins and role-less users may reach every website; everyone else
	// needs an explicit access grant.
	if role := currentRole(c); role != "admin" && role != "" {
		ok, err := h.Store.HasWebsiteAccess(ctx, currentUserID(c), websiteID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !ok {
			return echo.NewHTTPError(http.StatusForbidden, "you do not have permission to access this website")
		}
	}

	client, err := h.newClient(websiteID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected error")
	}

	h.Logger.Printf("login request received - website: %s (%s)", websiteID, site.Name)
	result, err := client.Exchange(ctx, req.Username, req.Password)
	if err != nil {
		return partnerHTTPError(err)
	}
	h.Logger.Printf("login successful - website: %s, deals: %d", websiteID, len(result.Deals))

	handle := h.Registry.Insert(client)
	return c.JSON(http.StatusOK, PartnerLoginResponse{
		Session:   "active",
		SessionID: handle,
		User:      result.User,
		Deals:     result.Deals,
	})
}

// partnerHTTPError maps pipeline failures to user-visible statuses without
// leaking upstream error text.
func partnerHTTPError(err error) error {
	switch {
	case errors.Is(err, partner.ErrBadCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "bad credentials")
	case errors.Is(err, partner.ErrSessionVerification):
		return echo.NewHTTPError(http.StatusUnauthorized, "session verification failed")
	case errors.Is(err, partner.ErrSiteUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "website unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected error")
	}
}

// Download
//
//	@Summary		Download a partner file
//	@Description	Streams the file through the partner session matching session_id, anonymously if absent or expired
//	@Tags			partner
//	@Produce		octet-stream
//	@Param			url			query	string	true	"Absolute file URL"
//	@Param			session_id	query	string	false	"Session handle from partner login"
//	@Success		200	{file}		file
//	@Failure		400	{object}	HTTPError
//	@Failure		401	{object}	HTTPError
//	@Failure		502	{object}	HTTPError
//	@Failure		504	{object}	HTTPError
//	@Router			/api/partner/download [get]
func (h *PartnerHandler) download(c echo.Context) error {
	fileURL := c.QueryParam("url")
	if fileURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "download url is required")
	}
	if !strings.HasPrefix(fileURL, "http://") && !strings.HasPrefix(fileURL, "https://") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid download url")
	}

	var client *partner.Client
	if handle := c.QueryParam("session_id"); handle != "" {
		if cl, ok := h.Registry.Lookup(handle); ok {
			client = cl
		}
	}
	if client == nil {
		anon, err := partner.NewAnonymousClient(h.Opts, h.Logger)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "unexpected error")
		}
		client = anon
	}

	h.Logger.Printf("file download started - url: %s", fileURL)
	res, err := client.Download(c.Request().Context(), fileURL)
	if err != nil {
		if errors.Is(err, partner.ErrDownloadTimeout) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "request timeout")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "failed to download file")
	}
	defer res.Body.Close()

	if res.Status == http.StatusUnauthorized || res.Status == http.StatusForbidden {
		h.Logger.Printf("file download unauthorized - status: %d", res.Status)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if res.Status < 200 || res.Status > 299 {
		h.Logger.Printf("file download failed - url: %s, status: %d", fileURL, res.Status)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to download file")
	}

	filename := downloadFilename(res.Header.Get("Content-Disposition"), fileURL)
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Stream(http.StatusOK, contentType, res.Body)
}

// downloadFilename picks a filename from the upstream Content-Disposition,
// then the URL path, then a generic fallback.
func downloadFilename(disposition, fileURL string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if parsed, err := url.Parse(fileURL); err == nil {
		if base := path.Base(parsed.Path); strings.Contains(base, ".") {
			return base
		}
	}
	return "download"
}
