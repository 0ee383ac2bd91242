// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/penny-vault/pv-fund/handler"
	"github.com/penny-vault/pv-fund/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// New creates the fiber application with middleware and every route installed
func New(allowOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "pv-fund",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
	})

	if allowOrigins == "" {
		allowOrigins = "*"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "*",
		AllowMethods: "GET,HEAD",
	}))
	app.Use(middleware.NewLogger())
	app.Use(middleware.NewTracer())

	SetupRoutes(app)
	return app
}

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	app.Get("/", handler.Ping)

	prom := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		prom(c.Context())
		return nil
	})

	api := app.Group("/v1")

	metrics := api.Group("/metrics")
	metrics.Get("/", handler.ListMetrics)
	metrics.Get("/:code", handler.GetMetrics)

	api.Get("/report", handler.GetReport)
	api.Get("/report.html", handler.GetReportHTML)
	api.Get("/portfolio", handler.GetPortfolio)
}
