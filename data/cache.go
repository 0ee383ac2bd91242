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
	"encoding/hex"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-fund/common"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// CachedBenchmark wraps a BenchmarkProvider and stores results in the shared
// LRU/redis cache keyed by ticker and date range
type CachedBenchmark struct {
	provider BenchmarkProvider
}

// NewCachedBenchmark creates a caching BenchmarkProvider
func NewCachedBenchmark(provider BenchmarkProvider) *CachedBenchmark {
	return &CachedBenchmark{provider: provider}
}

func benchmarkCacheKey(ticker string, begin, end time.Time) string {
	h := blake3.New()
	_, _ = h.Write([]byte(ticker))
	_, _ = h.Write([]byte(begin.Format("2006-01-02")))
	_, _ = h.Write([]byte(end.Format("2006-01-02")))
	return "benchmark:" + hex.EncodeToString(h.Sum(nil)[:16])
}

// Prices returns cached prices when available and otherwise delegates to the
// wrapped provider. Empty results are not cached.
func (cb *CachedBenchmark) Prices(ctx context.Context, ticker string, begin, end time.Time) (BenchmarkSeries, error) {
	key := benchmarkCacheKey(ticker, begin, end)
	subLog := log.With().Str("Ticker", ticker).Str("CacheKey", key).Logger()

	if raw, err := common.CacheGet(ctx, key); err == nil {
		series := BenchmarkSeries{}
		decodeErr := json.Unmarshal(raw, &series)
		if decodeErr == nil {
			subLog.Debug().Int("NumPoints", series.Len()).Msg("benchmark cache hit")
			return series, nil
		}
		subLog.Warn().Err(decodeErr).Msg("could not decode cached benchmark")
	} else if !errors.Is(err, common.ErrCacheMiss) {
		subLog.Warn().Err(err).Msg("benchmark cache lookup failed")
	}

	series, err := cb.provider.Prices(ctx, ticker, begin, end)
	if err != nil {
		return series, err
	}

	if series.Len() > 0 {
		if raw, err := json.Marshal(series); err == nil {
			if err := common.CacheSet(ctx, key, raw); err != nil {
				subLog.Warn().Err(err).Msg("could not cache benchmark")
			}
		}
	}

	return series, nil
}
