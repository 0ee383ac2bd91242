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
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"github.com/penny-vault/pv-fund/observability/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// NavProvider is a source of scheme metadata and NAV history
type NavProvider interface {
	Schemes(ctx context.Context) ([]Scheme, error)
	NavHistory(ctx context.Context, code string) (Scheme, []RawNav, error)
}

// BenchmarkProvider is a source of daily close prices for an index
type BenchmarkProvider interface {
	Prices(ctx context.Context, ticker string, begin, end time.Time) (BenchmarkSeries, error)
}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1.0
)

// client is the HTTP plumbing shared by providers: requests are rate limited and
// pass through a circuit breaker so a failing upstream is not hammered
type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// ClientOption configures a provider client
type ClientOption func(*client)

// WithBaseURL overrides the provider's default endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets the maximum number of requests per second
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *client) {
		if requestsPerSecond <= 0 {
			requestsPerSecond = DefaultRateLimit
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithTimeout sets the per request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *client) {
		c.httpClient.Timeout = timeout
	}
}

func newClient(name, baseURL string, opts ...ClientOption) *client {
	c := &client{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	st := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("Provider", name).Str("From", from.String()).Str("To", to.String()).Msg("circuit breaker changed state")
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)

	return c
}

// getJSON fetches url and decodes the JSON body into result
func (c *client) getJSON(ctx context.Context, url string, result interface{}) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, fmt.Sprintf("%s.get", c.name))
	defer span.End()

	span.SetAttributes(attribute.String("Url", url))
	subLog := log.With().Str("Provider", c.name).Str("Url", url).Logger()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait failed")
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "pv-fund")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
			return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		telemetry.ProviderRequests.WithLabelValues(c.name, "error").Inc()
		span.RecordError(err)
		msg := "http request failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return err
	}

	if err := json.Unmarshal(body.([]byte), result); err != nil {
		telemetry.ProviderRequests.WithLabelValues(c.name, "error").Inc()
		span.RecordError(err)
		msg := "could not unmarshal json"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return err
	}

	telemetry.ProviderRequests.WithLabelValues(c.name, "ok").Inc()
	return nil
}
