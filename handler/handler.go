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
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/report"
)

var (
	ErrNotConfigured = errors.New("handler store not configured")
)

// Deps are the dependencies shared by every handler
type Deps struct {
	Store      data.Store
	Allocation report.Allocation
	Criteria   report.Criteria
}

var (
	depsMu sync.RWMutex
	deps   *Deps
)

// Setup installs the dependencies used by the handlers
func Setup(d *Deps) {
	depsMu.Lock()
	defer depsMu.Unlock()
	deps = d
}

func current() (*Deps, error) {
	depsMu.RLock()
	defer depsMu.RUnlock()
	if deps == nil || deps.Store == nil {
		return nil, ErrNotConfigured
	}
	return deps, nil
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func sendError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(errorResponse{
		Status:  "error",
		Message: err.Error(),
	})
}
