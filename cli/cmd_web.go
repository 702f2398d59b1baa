/*
 * Copyright (C) 2026 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/theirish81/jsengine"
)

var (
	port   int
	apiKey string
)

type evalRequest struct {
	Source string `json:"source"`
	Code   string `json:"code"`
}

type callRequest struct {
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
	Args       []any  `json:"args"`
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run a web server evaluating JavaScript over HTTP and MCP.",
	Long: `
Run a web server evaluating JavaScript. POST /eval and POST /call take JSON requests, /mcp exposes the
javascript_eval tool to MCP clients. Every request gets a fresh engine.
***WARNING***: external interpreters run with the privileges of the server, anyone reaching it can run code on the
host. Use this mode only in development or safe environments, and set an API key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		e := newWebServer(newLogger())
		return e.Start(fmt.Sprintf(":%d", port))
	},
}

func init() {
	webCmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	webCmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "required value of the x-api-key header")
}

// errorHandler maps the engine error taxonomy onto status codes.
var errorHandler = func(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		_ = c.JSON(httpErr.Code, echo.Map{"error": fmt.Sprint(httpErr.Message)})
	case errors.Is(err, jsengine.ErrProgram):
		_ = c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error(), "type": "program"})
	case errors.Is(err, jsengine.ErrCapability):
		_ = c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error(), "type": "capability"})
	case errors.Is(err, jsengine.ErrRuntime):
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error(), "type": "runtime"})
	default:
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
}

func newWebServer(log *slog.Logger) *echo.Echo {
	e := echo.New()
	addRequestLoggerMiddleware(e, log)
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler
	e.POST("/eval", func(c echo.Context) error {
		req := evalRequest{}
		if err := c.Bind(&req); err != nil {
			return err
		}
		res, err := evalSource(c.Request().Context(), log, req.Source, req.Code)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"result": res})
	}, requireApiKey(apiKey))
	e.POST("/call", func(c echo.Context) error {
		req := callRequest{}
		if err := c.Bind(&req); err != nil {
			return err
		}
		if req.Identifier == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "identifier is required")
		}
		engine, err := newEngine(c.Request().Context(), log)
		if err != nil {
			return err
		}
		defer func() { _ = engine.Close() }()
		if err := engine.Append(c.Request().Context(), req.Source); err != nil {
			return err
		}
		res, err := engine.Call(c.Request().Context(), req.Identifier, req.Args...)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"result": res})
	}, requireApiKey(apiKey))
	initMCP(e, log)
	return e
}

// evalSource evaluates code after source on a fresh engine.
func evalSource(ctx context.Context, log *slog.Logger, source string, code string) (any, error) {
	engine, err := newEngine(ctx, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = engine.Close() }()
	if err := engine.Append(ctx, source); err != nil {
		return nil, err
	}
	return engine.Eval(ctx, code)
}

// addRequestLoggerMiddleware adds a middleware that logs each request.
func addRequestLoggerMiddleware(e *echo.Echo, log *slog.Logger) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
				)
			} else {
				log.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
				)
			}
			return nil
		},
	}))
}

// requireApiKey rejects requests lacking the API key. An empty key lets everything through.
func requireApiKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key != "" && c.Request().Header.Get("x-api-key") != key {
				return echo.NewHTTPError(http.StatusForbidden, "invalid API key")
			}
			return next(c)
		}
	}
}
