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

package report

import (
	"sort"
	"time"

	"github.com/penny-vault/pv-fund/data"
	"github.com/rs/zerolog/log"
)

// ScoreWeights combine the risk adjusted metrics into a single ranking score
type ScoreWeights struct {
	Sharpe  float64 `json:"sharpe"`
	Sortino float64 `json:"sortino"`
	Alpha   float64 `json:"alpha"`
}

// Criteria are the risk limits a fund must meet to be recommended. MaxDrawdown
// is in percent and MaxVolatility is an annualized fraction, matching the
// stored records.
type Criteria struct {
	MinSharpe     float64      `json:"min_sharpe"`
	MinSortino    float64      `json:"min_sortino"`
	MaxDrawdown   float64      `json:"max_drawdown"`
	MaxVolatility float64      `json:"max_volatility"`
	PerBucket     int          `json:"per_bucket"`
	Weights       ScoreWeights `json:"weights"`
}

// DefaultCriteria requires positive Sharpe and Sortino ratios and less than 25%
// drawdown and volatility, keeping the top 3 funds per bucket
func DefaultCriteria() Criteria {
	return Criteria{
		MinSharpe:     0,
		MinSortino:    0,
		MaxDrawdown:   25,
		MaxVolatility: 0.25,
		PerBucket:     3,
		Weights:       ScoreWeights{Sharpe: 0.4, Sortino: 0.4, Alpha: 0.2},
	}
}

// Eligible reports whether rec satisfies the risk limits
func (c Criteria) Eligible(rec data.MetricsRecord) bool {
	return rec.Sharpe > c.MinSharpe &&
		rec.Sortino > c.MinSortino &&
		rec.MaxDrawdown < c.MaxDrawdown &&
		rec.Volatility < c.MaxVolatility
}

// Score is the weighted sum of Sharpe, Sortino and alpha
func (c Criteria) Score(rec data.MetricsRecord) float64 {
	return rec.Sharpe*c.Weights.Sharpe + rec.Sortino*c.Weights.Sortino + rec.Alpha*c.Weights.Alpha
}

// Ranked is a metrics record with its ranking score
type Ranked struct {
	data.MetricsRecord
	Score float64 `json:"score"`
}

// BucketPicks are the top ranked funds of an allocation bucket
type BucketPicks struct {
	Bucket Bucket   `json:"bucket"`
	Picks  []Ranked `json:"picks"`
}

// Recommendation is a single fund to buy with its share of the investment
type Recommendation struct {
	SchemeCode string  `json:"scheme_code"`
	Name       string  `json:"scheme_name"`
	Bucket     string  `json:"bucket"`
	Weight     float64 `json:"weight"`
	Score      float64 `json:"score"`
}

// Report is the ranked, allocation weighted recommendation built from a
// metrics batch
type Report struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	AlphaStrategy string        `json:"alpha_strategy"`
	Period        string        `json:"period"`
	TotalFunds    int           `json:"total_funds"`
	Excluded      int           `json:"excluded_strategy"`
	Criteria      Criteria      `json:"criteria"`
	Ranked        []Ranked      `json:"ranked"`
	Buckets       []BucketPicks `json:"buckets"`
}

// dominantStrategy returns the alpha strategy used by most records; ties go to
// the alphabetically first name
func dominantStrategy(records []data.MetricsRecord) string {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.AlphaStrategy]++
	}

	best := ""
	for strategy, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && strategy < best) {
			best = strategy
		}
	}
	return best
}

// Build filters records by criteria, ranks them by score and picks the top funds
// of each allocation bucket. Alpha values from different strategies are not
// comparable so only records of the dominant strategy are considered.
func Build(records []data.MetricsRecord, alloc Allocation, criteria Criteria) *Report {
	rep := &Report{
		GeneratedAt: time.Now().UTC(),
		TotalFunds:  len(records),
		Criteria:    criteria,
		Ranked:      make([]Ranked, 0, len(records)),
		Buckets:     make([]BucketPicks, 0, len(alloc.Buckets)),
	}

	rep.AlphaStrategy = dominantStrategy(records)
	for _, rec := range records {
		if rec.AlphaStrategy != rep.AlphaStrategy {
			rep.Excluded++
			continue
		}
		if rep.Period == "" {
			rep.Period = rec.Period
		}
		if !criteria.Eligible(rec) {
			continue
		}
		rep.Ranked = append(rep.Ranked, Ranked{MetricsRecord: rec, Score: criteria.Score(rec)})
	}

	if rep.Excluded > 0 {
		log.Warn().Str("AlphaStrategy", rep.AlphaStrategy).Int("NumExcluded", rep.Excluded).
			Msg("metrics batch mixes alpha strategies; ignoring records scored with a different strategy")
	}

	sort.SliceStable(rep.Ranked, func(i, j int) bool {
		if rep.Ranked[i].Score == rep.Ranked[j].Score {
			return rep.Ranked[i].SchemeCode < rep.Ranked[j].SchemeCode
		}
		return rep.Ranked[i].Score > rep.Ranked[j].Score
	})

	perBucket := criteria.PerBucket
	if perBucket <= 0 {
		perBucket = DefaultCriteria().PerBucket
	}

	picks := make(map[string][]Ranked, len(alloc.Buckets))
	for _, r := range rep.Ranked {
		bucket, ok := alloc.Bucket(r.Name)
		if !ok || len(picks[bucket.Name]) >= perBucket {
			continue
		}
		picks[bucket.Name] = append(picks[bucket.Name], r)
	}

	for _, bucket := range alloc.Buckets {
		rep.Buckets = append(rep.Buckets, BucketPicks{
			Bucket: bucket,
			Picks:  picks[bucket.Name],
		})
	}

	return rep
}

// Recommendations flattens the bucket picks. Each fund's weight is its
// bucket's weight split evenly across the bucket's picks.
func (rep *Report) Recommendations() []Recommendation {
	recs := make([]Recommendation, 0, 16)
	for _, bp := range rep.Buckets {
		if len(bp.Picks) == 0 {
			continue
		}
		share := bp.Bucket.Weight / float64(len(bp.Picks))
		for _, pick := range bp.Picks {
			recs = append(recs, Recommendation{
				SchemeCode: pick.SchemeCode,
				Name:       pick.Name,
				Bucket:     bp.Bucket.Name,
				Weight:     share,
				Score:      pick.Score,
			})
		}
	}
	return recs
}
