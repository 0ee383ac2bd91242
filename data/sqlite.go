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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// registers the sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const sqliteDateFormat = "2006-01-02"

// SQLiteStore persists data in a single SQLite file. It is used for local runs
// without a PostgreSQL server and for exported snapshots.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at dsn
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Error().Stack().Err(err).Str("DSN", dsn).Msg("could not open sqlite database")
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func sqliteRollback(trx *sql.Tx) {
	if err := trx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}

// Migrate creates any missing tables
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			log.Error().Stack().Err(err).Str("Query", stmt).Msg("could not create table")
			return err
		}
	}
	return nil
}

// SaveSchemes inserts or updates scheme metadata
func (s *SQLiteStore) SaveSchemes(ctx context.Context, schemes []Scheme) error {
	trx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqliteRollback(trx)

	for _, scheme := range schemes {
		if _, err := trx.ExecContext(ctx, upsertSchemeSQL, scheme.Code, scheme.Name, scheme.FundHouse, scheme.Category); err != nil {
			log.Error().Stack().Err(err).Str("SchemeCode", scheme.Code).Msg("could not save scheme")
			return err
		}
	}

	return trx.Commit()
}

// SaveNavHistory inserts NAV points for a scheme, ignoring dates that are already
// stored. The number of new rows is returned.
func (s *SQLiteStore) SaveNavHistory(ctx context.Context, code string, points []NavPoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	trx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer sqliteRollback(trx)

	var inserted int64
	for start := 0; start < len(points); start += navInsertChunk {
		end := start + navInsertChunk
		if end > len(points) {
			end = len(points)
		}
		chunk := points[start:end]
		args := make([]interface{}, 0, len(chunk)*3)
		for _, pt := range chunk {
			args = append(args, code, pt.Date.Format(sqliteDateFormat), pt.NAV)
		}

		res, err := trx.ExecContext(ctx, navInsertSQL(len(chunk)), args...)
		if err != nil {
			log.Error().Stack().Err(err).Str("SchemeCode", code).Msg("could not insert nav history")
			return 0, err
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	return inserted, trx.Commit()
}

// LoadFunds returns the NAV history of every scheme on or after since
func (s *SQLiteStore) LoadFunds(ctx context.Context, since time.Time) ([]FundSeries, error) {
	rows, err := s.db.QueryContext(ctx, loadFundsSQL, since.Format(sqliteDateFormat))
	if err != nil {
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

	return funds, rows.Err()
}

// LatestNavs returns the most recent NAV of each scheme keyed by scheme code
func (s *SQLiteStore) LatestNavs(ctx context.Context) (map[string]NavPoint, error) {
	rows, err := s.db.QueryContext(ctx, latestNavsSQL)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query latest navs")
		return nil, err
	}
	defer rows.Close()

	latest := make(map[string]NavPoint)
	for rows.Next() {
		var pt NavPoint
		if err := rows.Scan(&pt.SchemeCode, &pt.Date, &pt.NAV); err != nil {
			return nil, err
		}
		pt.Date = dateOnly(pt.Date)
		latest[pt.SchemeCode] = pt
	}

	return latest, rows.Err()
}

// ReplaceMetrics atomically swaps the stored metrics for records
func (s *SQLiteStore) ReplaceMetrics(ctx context.Context, records []MetricsRecord) error {
	trx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqliteRollback(trx)

	if _, err := trx.ExecContext(ctx, "DELETE FROM fund_metrics"); err != nil {
		log.Error().Stack().Err(err).Msg("could not clear fund_metrics")
		return err
	}

	for _, rec := range records {
		if _, err := trx.ExecContext(ctx, insertMetricsSQL, metricsArgs(rec)...); err != nil {
			log.Error().Stack().Err(err).Str("SchemeCode", rec.SchemeCode).Msg("could not insert metrics record")
			return err
		}
	}

	return trx.Commit()
}

// LoadMetrics returns the current metrics batch ordered by scheme code
func (s *SQLiteStore) LoadMetrics(ctx context.Context) ([]MetricsRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM fund_metrics ORDER BY scheme_code", strings.Join(metricsColumns, ", "))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query fund_metrics")
		return nil, err
	}
	defer rows.Close()

	records := make([]MetricsRecord, 0, 128)
	for rows.Next() {
		rec, err := scanMetrics(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ReplacePortfolio atomically replaces the simulated portfolio with holdings
func (s *SQLiteStore) ReplacePortfolio(ctx context.Context, holdings []Holding) error {
	trx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqliteRollback(trx)

	if _, err := trx.ExecContext(ctx, "DELETE FROM virtual_portfolio"); err != nil {
		return err
	}

	for _, h := range holdings {
		if _, err := trx.ExecContext(ctx, insertHoldingSQL, h.SchemeCode, h.Name, h.Category, h.InvestmentAmount,
			h.PurchaseNAV, h.Units, h.PurchaseDate.Format(sqliteDateFormat)); err != nil {
			log.Error().Stack().Err(err).Str("SchemeCode", h.SchemeCode).Msg("could not insert holding")
			return err
		}
	}

	return trx.Commit()
}

// LoadPortfolio returns the simulated portfolio ordered by category
func (s *SQLiteStore) LoadPortfolio(ctx context.Context) ([]Holding, error) {
	rows, err := s.db.QueryContext(ctx, loadPortfolioSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := make([]Holding, 0, 16)
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.SchemeCode, &h.Name, &h.Category, &h.InvestmentAmount, &h.PurchaseNAV,
			&h.Units, &h.PurchaseDate); err != nil {
			return nil, err
		}
		h.PurchaseDate = dateOnly(h.PurchaseDate)
		holdings = append(holdings, h)
	}

	return holdings, rows.Err()
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
