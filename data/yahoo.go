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
	"net/url"
	"time"

	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultYahooURL is the Yahoo Finance chart endpoint used for index closes
const DefaultYahooURL = "https://query1.finance.yahoo.com"

type yahoo struct {
	*client
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// NewYahoo creates a benchmark provider backed by the Yahoo Finance chart API
func NewYahoo(opts ...ClientOption) *yahoo {
	return &yahoo{
		client: newClient("yahoo", DefaultYahooURL, opts...),
	}
}

// Prices returns daily closes of ticker between begin and end inclusive. Null
// closes returned by the API are dropped.
func (y *yahoo) Prices(ctx context.Context, ticker string, begin, end time.Time) (BenchmarkSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.Prices")
	defer span.End()

	span.SetAttributes(attribute.String("Ticker", ticker))
	subLog := log.With().Str("Ticker", ticker).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		return BenchmarkSeries{Ticker: ticker}, ErrInvalidTimeRange
	}

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", begin.Unix()))
	// period2 is exclusive
	params.Set("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(ticker), params.Encode())

	resp := yahooChartResponse{}
	if err := y.getJSON(ctx, reqURL, &resp); err != nil {
		return BenchmarkSeries{Ticker: ticker}, err
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		subLog.Warn().Msg("benchmark provider returned no results")
		return BenchmarkSeries{Ticker: ticker}, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	tz := common.GetTimezone()
	timestamps := resp.Chart.Result[0].Timestamp
	closes := resp.Chart.Result[0].Indicators.Quote[0].Close
	raw := make([]RawNav, 0, len(timestamps))
	for idx, ts := range timestamps {
		if idx >= len(closes) {
			break
		}
		val := math.NaN()
		if closes[idx] != nil {
			val = *closes[idx]
		}
		raw = append(raw, RawNav{
			Date: time.Unix(ts, 0).In(tz).Format("2006-01-02"),
			NAV:  val,
		})
	}

	series := NormalizeBenchmark(ticker, raw).Trim(begin, end)
	span.SetAttributes(attribute.Int("NumPoints", series.Len()))
	return series, nil
}
