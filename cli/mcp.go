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
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/labstack/echo/v4"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type evalParams struct {
	Source string `json:"source"`
	Code   string `json:"code"`
}

var toolEval = &mcp.Tool{
	Name: "javascript_eval",
	Description: "evaluates JavaScript code and returns its value as JSON. The optional source runs first, the " +
		"value of code is returned.",
	InputSchema: &jsonschema.Schema{
		Type:     "object",
		Required: []string{"code"},
		Properties: map[string]*jsonschema.Schema{
			"source": {
				Type:        "string",
				Description: "statements to run before code, such as function definitions",
			},
			"code": {
				Type:        "string",
				Description: "the expression or statements whose value is returned",
			},
		},
	},
}

func initMCP(e *echo.Echo, log *slog.Logger) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: "jsengine", Version: version}, nil)
	mcp.AddTool(mcpServer, toolEval,
		func(ctx context.Context, request *mcp.CallToolRequest, args evalParams) (*mcp.CallToolResult, any, error) {
			res, err := evalSource(ctx, log, args.Source, args.Code)
			if err != nil {
				return toErrorResult(err), nil, nil
			}
			return toCallResult(res, "result"), nil, nil
		})
	method := mcp.NewStreamableHTTPHandler(func(request *http.Request) *mcp.Server {
		return mcpServer
	}, nil)
	e.Any("/mcp", echo.WrapHandler(method), requireApiKey(apiKey))
}

func toCallResult(data any, rootObjectName string) *mcp.CallToolResult {
	output := map[string]any{rootObjectName: data}
	content, err := json.Marshal(output)
	if err != nil {
		return toErrorResult(err)
	}
	return &mcp.CallToolResult{StructuredContent: output, Content: []mcp.Content{
		&mcp.TextContent{
			Text: string(content),
		},
	}}
}

func toErrorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{
		&mcp.TextContent{
			Text: err.Error(),
		},
	}}
}
