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

package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NewTracer creates a middleware that wraps every request in a span
func NewTracer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), c.Method()+" "+c.Path())
		defer span.End()

		span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

		err := c.Next()

		code := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", code))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if code >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "server error")
		}

		return err
	}
}
