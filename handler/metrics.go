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
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/filter"
	"github.com/rs/zerolog/log"
)

var (
	ErrFilterNotSupported = errors.New("store does not support filtering metrics")
)

// queryFilters splits the query string into column filters and the order parameter
func queryFilters(c *fiber.Ctx) (map[string]string, string) {
	where := make(map[string]string)
	order := ""
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		if k == "order" {
			order = string(value)
			return
		}
		where[k] = string(value)
	})
	return where, order
}

// ListMetrics returns the current metrics batch. Query parameters of the form
// `column=op.value` filter the records, `order=column.desc` sorts them.
func ListMetrics(c *fiber.Ctx) error {
	d, err := current()
	if err != nil {
		return sendError(c, fiber.StatusServiceUnavailable, err)
	}

	where, order := queryFilters(c)
	if err := filter.Restrict(where, order, data.MetricsColumns()); err != nil {
		log.Warn().Err(err).Str("Query", c.Request().URI().QueryArgs().String()).Msg("rejected metrics filter")
		return sendError(c, fiber.StatusBadRequest, err)
	}

	var records []data.MetricsRecord
	if querier, ok := d.Store.(data.MetricsQuerier); ok {
		if order == "" {
			order = "scheme_code"
		}
		records, err = querier.QueryMetrics(c.Context(), where, order)
	} else {
		if len(where) > 0 || order != "" {
			return sendError(c, fiber.StatusNotImplemented, ErrFilterNotSupported)
		}
		records, err = d.Store.LoadMetrics(c.Context())
	}

	if err != nil {
		if errors.Is(err, filter.ErrInvalidWhere) || errors.Is(err, filter.ErrUnknownOperator) || errors.Is(err, filter.ErrInvalidOrder) {
			return sendError(c, fiber.StatusBadRequest, err)
		}
		log.Error().Err(err).Msg("could not load metrics")
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(records)
}

// GetMetrics returns the metrics record of a single scheme
func GetMetrics(c *fiber.Ctx) error {
	d, err := current()
	if err != nil {
		return sendError(c, fiber.StatusServiceUnavailable, err)
	}

	code := c.Params("code")
	records, err := d.Store.LoadMetrics(c.Context())
	if err != nil {
		log.Error().Err(err).Str("SchemeCode", code).Msg("could not load metrics")
		return sendError(c, fiber.StatusInternalServerError, err)
	}

	for _, rec := range records {
		if rec.SchemeCode == code {
			return c.JSON(rec)
		}
	}

	return fiber.ErrNotFound
}
