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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/pv-fund/data/database"
	"github.com/penny-vault/pv-fund/filter"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PgStore persists data in PostgreSQL through the pool configured in the
// database package
type PgStore struct{}

// NewPgStore creates a store that uses the shared database pool
func NewPgStore() *PgStore {
	return &PgStore{}
}

func rollback(ctx context.Context, trx pgx.Tx, subLog zerolog.Logger) {
	if err := trx.Rollback(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}

// Migrate creates any missing tables
func (s *PgStore) Migrate(ctx context.Context) error {
	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return err
	}

	for _, stmt := range schema {
		if _, err := trx.Exec(ctx, stmt); err != nil {
			log.Error().Stack().Err(err).Str("Query", stmt).Msg("could not create table")
			rollback(ctx, trx, log.Logger)
			return err
		}
	}

	return trx.Commit(ctx)
}

// SaveSchemes inserts or updates scheme metadata
func (s *PgStore) SaveSchemes(ctx context.Context, schemes []Scheme) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.SaveSchemes")
	defer span.End()

	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return err
	}

	for _, scheme := range schemes {
		if _, err := trx.Exec(ctx, upsertSchemeSQL, scheme.Code, scheme.Name, scheme.FundHouse, scheme.Category); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upsert scheme failed")
			log.Error().Stack().Err(err).Str("SchemeCode", scheme.Code).Msg("could not save scheme")
			rollback(ctx, trx, log.Logger)
			return err
		}
	}

	return trx.Commit(ctx)
}

// SaveNavHistory inserts NAV points for a scheme, ignoring dates that are already
// stored. The number of new rows is returned.
func (s *PgStore) SaveNavHistory(ctx context.Context, code string, points []NavPoint) (int64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.SaveNavHistory")
	defer span.End()

	span.SetAttributes(attribute.String("SchemeCode", code), attribute.Int("NumPoints", len(points)))
	subLog := log.With().Str("SchemeCode", code).Logger()

	if len(points) == 0 {
		return 0, nil
	}

	trx, err := database.Begin(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not begin transaction")
		return 0, err
	}

	var inserted int64
	for start := 0; start < len(points); start += navInsertChunk {
		end := start + navInsertChunk
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]
		args := make([]interface{}, 0, len(chunk)*3)
		for _, pt := range chunk {
			args = append(args, code, pt.Date, pt.NAV)
		}

		tag, err := trx.Exec(ctx, navInsertSQL(len(chunk)), args...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert nav history failed")
			subLog.Error().Stack().Err(err).Msg("could not insert nav history")
			rollback(ctx, trx, subLog)
			return 0, err
		}
		inserted += tag.RowsAffected()
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit nav history")
		return 0, err
	}

	return inserted, nil
}

// LoadFunds returns the NAV history of every scheme on or after since, one
// series per scheme ordered by scheme code
func (s *PgStore) LoadFunds(ctx context.Context, since time.Time) ([]FundSeries, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.LoadFunds")
	defer span.End()

	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}
	defer rollback(ctx, trx, log.Logger)

	rows, err := trx.Query(ctx, loadFundsSQL, since)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load funds failed")
		log.Error().Stack().Err(err).Msg("could not query nav history")
		return nil, err
	}
	defer rows.Close()

	funds := make([]FundSeries, 0, 64)
	for rows.Next() {
		var scheme Scheme
		var pt NavPoint
		if err := rows.Scan(&scheme.Code, &scheme.Name, &scheme.FundHouse, &scheme.Category, &pt.Date, &pt.NAV); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan nav history row")
			return nil, err
		}
		pt.SchemeCode = scheme.Code
		pt.Date = dateOnly(pt.Date)
		funds = appendPoint(funds, scheme, pt)
	}

	if err := rows.Err(); err != nil {
		log.Error().Stack().Err(err).Msg("nav history query read failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("NumFunds", len(funds)))
	return funds, nil
}

// appendPoint adds pt to the last series in funds or starts a new series when
// the scheme changes; rows arrive ordered by scheme code
func appendPoint(funds []FundSeries, scheme Scheme, pt NavPoint) []FundSeries {
	if len(funds) == 0 || funds[len(funds)-1].Scheme.Code != scheme.Code {
		funds = append(funds, FundSeries{Scheme: scheme, Points: make([]NavPoint, 0, 512)})
	}
	last := &funds[len(funds)-1]
	last.Points = append(last.Points, pt)
	return funds
}

// LatestNavs returns the most recent NAV of each scheme keyed by scheme code
func (s *PgStore) LatestNavs(ctx context.Context) (map[string]NavPoint, error) {
	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}
	defer rollback(ctx, trx, log.Logger)

	rows, err := trx.Query(ctx, latestNavsSQL)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query latest navs")
		return nil, err
	}
	defer rows.Close()

	latest := make(map[string]NavPoint)
	for rows.Next() {
		var pt NavPoint
		if err := rows.Scan(&pt.SchemeCode, &pt.Date, &pt.NAV); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan latest nav")
			return nil, err
		}
		pt.Date = dateOnly(pt.Date)
		latest[pt.SchemeCode] = pt
	}

	return latest, rows.Err()
}

// ReplaceMetrics atomically swaps the stored metrics for records. Either every
// record is stored or the previous batch is left untouched.
func (s *PgStore) ReplaceMetrics(ctx context.Context, records []MetricsRecord) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.ReplaceMetrics")
	defer span.End()

	span.SetAttributes(attribute.Int("NumRecords", len(records)))

	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return err
	}

	if _, err := trx.Exec(ctx, "DELETE FROM fund_metrics"); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete metrics failed")
		log.Error().Stack().Err(err).Msg("could not clear fund_metrics")
		rollback(ctx, trx, log.Logger)
		return err
	}

	for _, rec := range records {
		if _, err := trx.Exec(ctx, insertMetricsSQL, metricsArgs(rec)...); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert metrics failed")
			log.Error().Stack().Err(err).Str("SchemeCode", rec.SchemeCode).Msg("could not insert metrics record")
			rollback(ctx, trx, log.Logger)
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit metrics")
		return err
	}

	return nil
}

func metricsArgs(rec MetricsRecord) []interface{} {
	return []interface{}{
		rec.SchemeCode, rec.Name, rec.Category, rec.Period, rec.PeriodYears,
		rec.Volatility, rec.Sharpe, rec.Sortino, rec.MaxDrawdown, rec.Alpha,
		rec.AlphaStrategy, rec.Observations, rec.RunID.String(), rec.ComputedAt,
	}
}

// LoadMetrics returns the current metrics batch ordered by scheme code
func (s *PgStore) LoadMetrics(ctx context.Context) ([]MetricsRecord, error) {
	return s.QueryMetrics(ctx, nil, "scheme_code")
}

// QueryMetrics returns metrics matching where, a map of column to `op.value`
// expressions (e.g. `sharpe: gt.0`), sorted by order
func (s *PgStore) QueryMetrics(ctx context.Context, where map[string]string, order string) ([]MetricsRecord, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.QueryMetrics")
	defer span.End()

	sql, args, err := filter.BuildQuery("fund_metrics", metricsColumns, nil, where, order)
	if err != nil {
		return nil, err
	}

	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}
	defer rollback(ctx, trx, log.Logger)

	rows, err := trx.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query metrics failed")
		log.Error().Stack().Err(err).Str("Query", sql).Msg("could not query fund_metrics")
		return nil, err
	}
	defer rows.Close()

	records := make([]MetricsRecord, 0, 128)
	for rows.Next() {
		rec, err := scanMetrics(rows)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not scan metrics record")
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMetrics(row scanner) (MetricsRecord, error) {
	var rec MetricsRecord
	var runID string
	err := row.Scan(&rec.SchemeCode, &rec.Name, &rec.Category, &rec.Period, &rec.PeriodYears,
		&rec.Volatility, &rec.Sharpe, &rec.Sortino, &rec.MaxDrawdown, &rec.Alpha,
		&rec.AlphaStrategy, &rec.Observations, &runID, &rec.ComputedAt)
	if err != nil {
		return rec, err
	}
	if rec.RunID, err = uuid.Parse(runID); err != nil {
		return rec, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return rec, nil
}

// ReplacePortfolio atomically replaces the simulated portfolio with holdings
func (s *PgStore) ReplacePortfolio(ctx context.Context, holdings []Holding) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgstore.ReplacePortfolio")
	defer span.End()

	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return err
	}

	if _, err := trx.Exec(ctx, "DELETE FROM virtual_portfolio"); err != nil {
		log.Error().Stack().Err(err).Msg("could not clear virtual_portfolio")
		rollback(ctx, trx, log.Logger)
		return err
	}

	for _, h := range holdings {
		if _, err := trx.Exec(ctx, insertHoldingSQL, h.SchemeCode, h.Name, h.Category, h.InvestmentAmount,
			h.PurchaseNAV, h.Units, h.PurchaseDate); err != nil {
			log.Error().Stack().Err(err).Str("SchemeCode", h.SchemeCode).Msg("could not insert holding")
			rollback(ctx, trx, log.Logger)
			return err
		}
	}

	return trx.Commit(ctx)
}

// LoadPortfolio returns the simulated portfolio ordered by category
func (s *PgStore) LoadPortfolio(ctx context.Context) ([]Holding, error) {
	trx, err := database.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}
	defer rollback(ctx, trx, log.Logger)

	rows, err := trx.Query(ctx, loadPortfolioSQL)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query virtual_portfolio")
		return nil, err
	}
	defer rows.Close()

	holdings := make([]Holding, 0, 16)
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.SchemeCode, &h.Name, &h.Category, &h.InvestmentAmount, &h.PurchaseNAV,
			&h.Units, &h.PurchaseDate); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan holding")
			return nil, err
		}
		h.PurchaseDate = dateOnly(h.PurchaseDate)
		holdings = append(holdings, h)
	}

	return holdings, rows.Err()
}

// Close is a no-op; the pool is owned by the database package
func (s *PgStore) Close() error {
	return nil
}
