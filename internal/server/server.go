// Package server wires the dealdesk HTTP API: application auth, user and
// website management, and the partner credential-exchange surface.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/quantfold/dealdesk/config"
	"github.com/quantfold/dealdesk/internal/partner"
	"github.com/quantfold/dealdesk/internal/partner/session"
	"github.com/quantfold/dealdesk/internal/store"
)

// Run starts the HTTP API and blocks until the listener stops.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging.
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.NewWithDSN(ctx, dsn)
	cancel()
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	registry := session.NewRegistry(cfg.Partner.SessionTTL)
	opts := partner.ClientOptions{
		APIDomain:       cfg.Partner.APIDomain,
		ConnectTimeout:  cfg.Partner.ConnectTimeout,
		ReadTimeout:     cfg.Partner.ReadTimeout,
		DownloadTimeout: cfg.Partner.DownloadTimeout,
		RetryCount:      cfg.Partner.RetryCount,
		RetryWaitTime:   cfg.Partner.RetryWaitTime,
		InsecureTLS:     cfg.Partner.InsecureTLS,
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	users := &UsersHandler{Store: st}
	users.Register(api.Group("/users"), []byte(secret))

	websites := &WebsitesHandler{Store: st}
	websites.Register(api.Group("/websites"), []byte(secret))

	ph := NewPartnerHandler(st, registry, opts, nil)
	ph.Register(api, []byte(secret))

	return e.Start(cfg.Server.Address)
}
