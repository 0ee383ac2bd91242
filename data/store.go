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
	"strings"
	"time"
)

// Store persists schemes, NAV history, metrics batches and the simulated portfolio
type Store interface {
	Migrate(ctx context.Context) error
	SaveSchemes(ctx context.Context, schemes []Scheme) error
	SaveNavHistory(ctx context.Context, code string, points []NavPoint) (int64, error)
	LoadFunds(ctx context.Context, since time.Time) ([]FundSeries, error)
	LatestNavs(ctx context.Context) (map[string]NavPoint, error)
	ReplaceMetrics(ctx context.Context, records []MetricsRecord) error
	LoadMetrics(ctx context.Context) ([]MetricsRecord, error)
	ReplacePortfolio(ctx context.Context, holdings []Holding) error
	LoadPortfolio(ctx context.Context) ([]Holding, error)
	Close() error
}

// MetricsQuerier is implemented by stores that can filter metrics server side
type MetricsQuerier interface {
	QueryMetrics(ctx context.Context, where map[string]string, order string) ([]MetricsRecord, error)
}

// LatestDate is the most recent date across navs, zero when navs is empty
func LatestDate(navs map[string]NavPoint) time.Time {
	var latest time.Time
	for _, pt := range navs {
		if pt.Date.After(latest) {
			latest = pt.Date
		}
	}
	return latest
}

// MetricsColumns returns the columns of fund_metrics that may be used in filters
func MetricsColumns() []string {
	cols := make([]string, len(metricsColumns))
	copy(cols, metricsColumns)
	return cols
}

var metricsColumns = []string{
	"scheme_code", "scheme_name", "scheme_category", "period", "period_years", "volatility", "sharpe",
	"sortino", "max_drawdown", "alpha", "alpha_strategy", "observations", "run_id", "computed_at",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scheme_info (
		scheme_code TEXT PRIMARY KEY,
		scheme_name TEXT NOT NULL,
		fund_house TEXT NOT NULL DEFAULT '',
		scheme_category TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS nav_history (
		scheme_code TEXT NOT NULL,
		nav_date DATE NOT NULL,
		nav DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (scheme_code, nav_date)
	)`,
	`CREATE TABLE IF NOT EXISTS fund_metrics (
		scheme_code TEXT PRIMARY KEY,
		scheme_name TEXT NOT NULL,
		scheme_category TEXT NOT NULL DEFAULT '',
		period TEXT NOT NULL DEFAULT '',
		period_years DOUBLE PRECISION NOT NULL,
		volatility DOUBLE PRECISION NOT NULL,
		sharpe DOUBLE PRECISION NOT NULL,
		sortino DOUBLE PRECISION NOT NULL,
		max_drawdown DOUBLE PRECISION NOT NULL,
		alpha DOUBLE PRECISION NOT NULL,
		alpha_strategy TEXT NOT NULL,
		observations INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		computed_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS virtual_portfolio (
		scheme_code TEXT PRIMARY KEY,
		scheme_name TEXT NOT NULL,
		category TEXT NOT NULL,
		investment_amount DOUBLE PRECISION NOT NULL,
		purchase_nav DOUBLE PRECISION NOT NULL,
		units DOUBLE PRECISION NOT NULL,
		purchase_date DATE NOT NULL
	)`,
}

const (
	upsertSchemeSQL = `INSERT INTO scheme_info (scheme_code, scheme_name, fund_house, scheme_category)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (scheme_code) DO UPDATE SET
		scheme_name = EXCLUDED.scheme_name,
		fund_house = CASE WHEN EXCLUDED.fund_house = '' THEN scheme_info.fund_house ELSE EXCLUDED.fund_house END,
		scheme_category = CASE WHEN EXCLUDED.scheme_category = '' THEN scheme_info.scheme_category ELSE EXCLUDED.scheme_category END`

	loadFundsSQL = `SELECT s.scheme_code, s.scheme_name, s.fund_house, s.scheme_category, n.nav_date, n.nav
	FROM nav_history n JOIN scheme_info s ON s.scheme_code = n.scheme_code
	WHERE n.nav_date >= $1
	ORDER BY n.scheme_code, n.nav_date`

	latestNavsSQL = `SELECT n.scheme_code, n.nav_date, n.nav
	FROM nav_history n JOIN (
		SELECT scheme_code, MAX(nav_date) AS nav_date FROM nav_history GROUP BY scheme_code
	) latest ON latest.scheme_code = n.scheme_code AND latest.nav_date = n.nav_date`

	insertMetricsSQL = `INSERT INTO fund_metrics (scheme_code, scheme_name, scheme_category, period, period_years,
		volatility, sharpe, sortino, max_drawdown, alpha, alpha_strategy, observations, run_id, computed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	insertHoldingSQL = `INSERT INTO virtual_portfolio (scheme_code, scheme_name, category, investment_amount,
		purchase_nav, units, purchase_date)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	loadPortfolioSQL = `SELECT scheme_code, scheme_name, category, investment_amount, purchase_nav, units, purchase_date
	FROM virtual_portfolio ORDER BY category, scheme_code`

	// navInsertChunk bounds the number of rows in a single multi-row insert
	navInsertChunk = 500
)

// navInsertSQL builds a multi-row insert that ignores rows already present
func navInsertSQL(rows int) string {
	sb := &strings.Builder{}
	sb.WriteString("INSERT INTO nav_history (scheme_code, nav_date, nav) VALUES ")
	for ii := 0; ii < rows; ii++ {
		if ii > 0 {
			sb.WriteString(", ")
		}
		base := ii * 3
		fmt.Fprintf(sb, "($%d, $%d, $%d)", base+1, base+2, base+3)
	}
	sb.WriteString(" ON CONFLICT (scheme_code, nav_date) DO NOTHING")
	return sb.String()
}
