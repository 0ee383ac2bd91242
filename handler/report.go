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

package handler

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-fund/portfolio"
	"github.com/penny-vault/pv-fund/report"
	"github.com/rs/zerolog/log"
)

func buildReport(c *fiber.Ctx, d *Deps) (*report.Report, error) {
	records, err := d.Store.LoadMetrics(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("could not load metrics")
		return nil, err
	}
	return report.Build(records, d.Allocation, d.Criteria), nil
}

// GetReport returns the recommendation report as JSON
func GetReport(c *fiber.Ctx) error {
	d, err := current()
	if err != nil {
		return sendError(c, fiber.StatusServiceUnavailable, err)
	}

	rep, err := buildReport(c, d)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"report":          rep,
		"recommendations": rep.Recommendations(),
	})
}

// GetReportHTML renders the recommendation report, with the simulated portfolio
// when one is booked, as an HTML page
func GetReportHTML(c *fiber.Ctx) error {
	d, err := current()
	if err != nil {
		return sendError(c, fiber.StatusServiceUnavailable, err)
	}

	rep, err := buildReport(c, d)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	var view *report.PortfolioView
	summary, err := portfolio.NewManager(d.Store).Track(c.Context())
	switch {
	case err == nil:
		view = summary.View()
	case errors.Is(err, portfolio.ErrEmptyPortfolio):
	default:
		log.Warn().Err(err).Msg("could not value portfolio; rendering report without it")
	}

	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, rep, view); err != nil {
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

// GetPortfolio returns the valuation of the simulated portfolio
func GetPortfolio(c *fiber.Ctx) error {
	d, err := current()
	if err != nil {
		return sendError(c, fiber.StatusServiceUnavailable, err)
	}

	summary, err := portfolio.NewManager(d.Store).Track(c.Context())
	if err != nil {
		if errors.Is(err, portfolio.ErrEmptyPortfolio) {
			return sendError(c, fiber.StatusNotFound, err)
		}
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(summary)
}
