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

package portfolio

import (
	"context"
	"sort"
	"time"

	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/metrics"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"github.com/penny-vault/pv-fund/report"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultInvestment is the amount booked when none is configured
const DefaultInvestment = 10000.0

// Valuation is a holding priced at the most recent NAV
type Valuation struct {
	data.Holding
	CurrentNAV   float64   `json:"current_nav"`
	NavDate      time.Time `json:"nav_date"`
	CurrentValue float64   `json:"current_value"`
	ProfitLoss   float64   `json:"profit_loss"`
}

// Summary totals the valuation of every holding
type Summary struct {
	AsOf            time.Time   `json:"as_of"`
	TotalInvestment float64     `json:"total_investment"`
	CurrentValue    float64     `json:"current_value"`
	ProfitLoss      float64     `json:"profit_loss"`
	Holdings        []Valuation `json:"holdings"`
}

// Book converts recommendations into holdings bought at each fund's latest NAV.
// Every fund receives amount times its recommendation weight. Funds without a
// NAV are skipped; a NAV that is not positive buys no units.
func Book(recs []report.Recommendation, navs map[string]data.NavPoint, amount float64) ([]data.Holding, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if len(recs) == 0 {
		return nil, ErrNoRecommendations
	}

	holdings := make([]data.Holding, 0, len(recs))
	for _, rec := range recs {
		nav, ok := navs[rec.SchemeCode]
		if !ok {
			log.Warn().Str("SchemeCode", rec.SchemeCode).Str("SchemeName", rec.Name).Msg("no NAV for recommended fund; skipping")
			continue
		}

		invested := metrics.Round(amount*rec.Weight, 2)
		units := 0.0
		if nav.NAV > 0 {
			units = invested / nav.NAV
		}

		holdings = append(holdings, data.Holding{
			SchemeCode:       rec.SchemeCode,
			Name:             rec.Name,
			Category:         rec.Bucket,
			InvestmentAmount: invested,
			PurchaseNAV:      nav.NAV,
			Units:            units,
			PurchaseDate:     nav.Date,
		})
	}

	if len(holdings) == 0 {
		return nil, ErrNoNavAvailable
	}

	return holdings, nil
}

// Value prices each holding at its latest NAV. Holdings whose scheme has no
// newer NAV keep their purchase NAV.
func Value(holdings []data.Holding, navs map[string]data.NavPoint) *Summary {
	summary := &Summary{
		Holdings: make([]Valuation, 0, len(holdings)),
	}

	for _, holding := range holdings {
		val := Valuation{
			Holding:    holding,
			CurrentNAV: holding.PurchaseNAV,
			NavDate:    holding.PurchaseDate,
		}

		if nav, ok := navs[holding.SchemeCode]; ok {
			val.CurrentNAV = nav.NAV
			val.NavDate = nav.Date
		} else {
			log.Warn().Str("SchemeCode", holding.SchemeCode).Msg("no current NAV for holding; using purchase NAV")
		}

		val.CurrentValue = holding.Units * val.CurrentNAV
		val.ProfitLoss = val.CurrentValue - holding.InvestmentAmount

		summary.TotalInvestment += holding.InvestmentAmount
		summary.CurrentValue += val.CurrentValue
		if val.NavDate.After(summary.AsOf) {
			summary.AsOf = val.NavDate
		}

		summary.Holdings = append(summary.Holdings, val)
	}

	summary.ProfitLoss = summary.CurrentValue - summary.TotalInvestment

	sort.SliceStable(summary.Holdings, func(i, j int) bool {
		return summary.Holdings[i].SchemeCode < summary.Holdings[j].SchemeCode
	})

	return summary
}

// View converts the summary into the portfolio section of a report
func (s *Summary) View() *report.PortfolioView {
	view := &report.PortfolioView{
		AsOf:            s.AsOf,
		TotalInvestment: s.TotalInvestment,
		CurrentValue:    s.CurrentValue,
		ProfitLoss:      s.ProfitLoss,
		Positions:       make([]report.Position, len(s.Holdings)),
	}

	for idx, val := range s.Holdings {
		view.Positions[idx] = report.Position{
			Name:       val.Name,
			Category:   val.Category,
			Invested:   val.InvestmentAmount,
			Value:      val.CurrentValue,
			ProfitLoss: val.ProfitLoss,
		}
	}

	return view
}

// Manager books and tracks the simulated portfolio kept in a store
type Manager struct {
	store data.Store
}

// NewManager creates a manager backed by store
func NewManager(store data.Store) *Manager {
	return &Manager{store: store}
}

// Book buys the report's recommendations at the latest stored NAVs and replaces
// the stored portfolio
func (m *Manager) Book(ctx context.Context, rep *report.Report, amount float64) ([]data.Holding, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.Book")
	defer span.End()

	span.SetAttributes(attribute.Float64("amount", amount))

	navs, err := m.store.LatestNavs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load latest NAVs")
		log.Error().Stack().Err(err).Msg("could not load latest NAVs")
		return nil, err
	}

	holdings, err := Book(rep.Recommendations(), navs, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		return nil, err
	}

	if err := m.store.ReplacePortfolio(ctx, holdings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not save portfolio")
		log.Error().Stack().Err(err).Msg("could not save portfolio")
		return nil, err
	}

	log.Info().Int("NumHoldings", len(holdings)).Float64("Amount", amount).Msg("booked portfolio")
	return holdings, nil
}

// Track values the stored portfolio at the latest stored NAVs
func (m *Manager) Track(ctx context.Context) (*Summary, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "portfolio.Track")
	defer span.End()

	holdings, err := m.store.LoadPortfolio(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load portfolio")
		log.Error().Stack().Err(err).Msg("could not load portfolio")
		return nil, err
	}

	if len(holdings) == 0 {
		return nil, ErrEmptyPortfolio
	}

	navs, err := m.store.LatestNavs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load latest NAVs")
		log.Error().Stack().Err(err).Msg("could not load latest NAVs")
		return nil, err
	}

	return Value(holdings, navs), nil
}
