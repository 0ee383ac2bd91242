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

package data

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMFAPIURL is the public mirror of the AMFI NAV history
const DefaultMFAPIURL = "https://api.mfapi.in"

type mfapi struct {
	*client
}

type mfapiSchemeResponse struct {
	SchemeCode json.Number `json:"schemeCode"`
	SchemeName string      `json:"schemeName"`
}

type mfapiHistoryResponse struct {
	Meta struct {
		FundHouse      string      `json:"fund_house"`
		SchemeType     string      `json:"scheme_type"`
		SchemeCategory string      `json:"scheme_category"`
		SchemeCode     json.Number `json:"scheme_code"`
		SchemeName     string      `json:"scheme_name"`
	} `json:"meta"`
	Data []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
	Status string `json:"status"`
}

// NewMFAPI creates a NAV provider backed by api.mfapi.in
func NewMFAPI(opts ...ClientOption) *mfapi {
	return &mfapi{
		client: newClient("mfapi", DefaultMFAPIURL, opts...),
	}
}

// Schemes lists every scheme known to the registry. Only code and name are
// populated; the remaining metadata arrives with the NAV history.
func (m *mfapi) Schemes(ctx context.Context) ([]Scheme, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "mfapi.Schemes")
	defer span.End()

	resp := []mfapiSchemeResponse{}
	if err := m.getJSON(ctx, fmt.Sprintf("%s/mf", m.baseURL), &resp); err != nil {
		return nil, err
	}

	schemes := make([]Scheme, 0, len(resp))
	for _, s := range resp {
		code := s.SchemeCode.String()
		if code == "" {
			continue
		}
		schemes = append(schemes, Scheme{
			Code: code,
			Name: strings.TrimSpace(s.SchemeName),
		})
	}

	span.SetAttributes(attribute.Int("NumSchemes", len(schemes)))
	return schemes, nil
}

// NavHistory downloads the full NAV history of a scheme. NAV values that cannot
// be parsed are returned as NaN so the normalizer drops them.
func (m *mfapi) NavHistory(ctx context.Context, code string) (Scheme, []RawNav, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "mfapi.NavHistory")
	defer span.End()

	span.SetAttributes(attribute.String("SchemeCode", code))

	resp := mfapiHistoryResponse{}
	if err := m.getJSON(ctx, fmt.Sprintf("%s/mf/%s", m.baseURL, code), &resp); err != nil {
		return Scheme{}, nil, err
	}

	if len(resp.Data) == 0 {
		return Scheme{}, nil, fmt.Errorf("%w: scheme %s", ErrNoData, code)
	}

	scheme := Scheme{
		Code:      code,
		Name:      strings.TrimSpace(resp.Meta.SchemeName),
		FundHouse: strings.TrimSpace(resp.Meta.FundHouse),
		Category:  strings.TrimSpace(resp.Meta.SchemeCategory),
	}

	raw := make([]RawNav, 0, len(resp.Data))
	for _, obs := range resp.Data {
		nav, err := strconv.ParseFloat(strings.TrimSpace(obs.NAV), 64)
		if err != nil {
			nav = math.NaN()
		}
		raw = append(raw, RawNav{Date: obs.Date, NAV: nav})
	}

	return scheme, raw, nil
}
