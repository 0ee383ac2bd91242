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

package data_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/data"
)

var _ = Describe("Normalize", func() {
	var (
		tz     = common.GetTimezone()
		scheme data.Scheme
	)

	BeforeEach(func() {
		scheme = data.Scheme{Code: "120503", Name: "Axis Bluechip Fund - Direct Plan - Growth", Category: "Equity Scheme - Large Cap Fund"}
	})

	DescribeTable("parsing dates",
		func(input string, expected time.Time, ok bool) {
			dt, parsed := data.ParseDate(input, tz)
			Expect(parsed).To(Equal(ok))
			if ok {
				Expect(dt).To(Equal(expected))
			}
		},
		Entry("day first with dashes", "05-01-2023", time.Date(2023, 1, 5, 0, 0, 0, 0, tz), true),
		Entry("iso", "2023-01-05", time.Date(2023, 1, 5, 0, 0, 0, 0, tz), true),
		Entry("day first with slashes", "05/01/2023", time.Date(2023, 1, 5, 0, 0, 0, 0, tz), true),
		Entry("abbreviated month", "05-Jan-2023", time.Date(2023, 1, 5, 0, 0, 0, 0, tz), true),
		Entry("with surrounding whitespace", " 2023-01-05 ", time.Date(2023, 1, 5, 0, 0, 0, 0, tz), true),
		Entry("timestamp", "2023-01-05T15:30:00Z", time.Date(2023, 1, 5, 0, 0, 0, 0, tz), true),
		Entry("empty", "", time.Time{}, false),
		Entry("garbage", "not a date", time.Time{}, false),
		Entry("impossible day", "31-02-2023", time.Time{}, false),
	)

	It("sorts ascending and keeps the first duplicate", func() {
		fs := data.Normalize(scheme, []data.RawNav{
			{Date: "03-01-2023", NAV: 12},
			{Date: "01-01-2023", NAV: 10},
			{Date: "2023-01-03", NAV: 99},
			{Date: "02-01-2023", NAV: 11},
		})
		Expect(fs.Len()).To(Equal(3))
		Expect(fs.Points[0].Date).To(Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, tz)))
		Expect(fs.Points[2].NAV).To(Equal(12.0))
		Expect(fs.Points[1].SchemeCode).To(Equal("120503"))
		Expect(fs.Scheme).To(Equal(scheme))
	})

	It("drops unparsable dates and invalid values", func() {
		fs := data.Normalize(scheme, []data.RawNav{
			{Date: "bad", NAV: 10},
			{Date: "01-01-2023", NAV: math.NaN()},
			{Date: "02-01-2023", NAV: 0},
			{Date: "03-01-2023", NAV: -1},
			{Date: "04-01-2023", NAV: math.Inf(1)},
			{Date: "05-01-2023", NAV: 10.5},
		})
		Expect(fs.Len()).To(Equal(1))
		Expect(fs.Points[0].NAV).To(Equal(10.5))
	})

	It("returns an empty series for empty input", func() {
		fs := data.Normalize(scheme, nil)
		Expect(fs.Len()).To(Equal(0))
		Expect(fs.Start().IsZero()).To(BeTrue())
		_, ok := fs.Latest()
		Expect(ok).To(BeFalse())
	})

	It("normalizes typed series", func() {
		d1 := time.Date(2023, 1, 1, 0, 0, 0, 0, tz)
		d2 := time.Date(2023, 1, 2, 0, 0, 0, 0, tz)
		fs := data.NormalizeSeries(data.FundSeries{
			Scheme: scheme,
			Points: []data.NavPoint{{Date: d2, NAV: 2}, {Date: d1, NAV: 1}, {Date: d2, NAV: 3}},
		})
		Expect(fs.Len()).To(Equal(2))
		Expect(fs.Points[1].NAV).To(Equal(2.0))
	})

	It("normalizes benchmark closes", func() {
		bs := data.NormalizeBenchmark("^NSEI", []data.RawNav{
			{Date: "2023-01-02", NAV: 18197.45},
			{Date: "2023-01-01", NAV: 18105.3},
		})
		Expect(bs.Ticker).To(Equal("^NSEI"))
		Expect(bs.Len()).To(Equal(2))
		Expect(bs.Points[0].Close).To(Equal(18105.3))
	})

	It("trims and converts to a dataframe", func() {
		fs := data.Normalize(scheme, []data.RawNav{
			{Date: "01-01-2023", NAV: 10},
			{Date: "02-01-2023", NAV: 11},
			{Date: "03-01-2023", NAV: 12},
		})
		trimmed := fs.Trim(time.Date(2023, 1, 2, 0, 0, 0, 0, tz), time.Date(2023, 1, 3, 0, 0, 0, 0, tz))
		Expect(trimmed.Len()).To(Equal(2))
		Expect(fs.Len()).To(Equal(3))

		df := trimmed.DataFrame()
		Expect(df.ColNames).To(Equal([]string{"120503"}))
		Expect(df.Vals[0]).To(Equal([]float64{11, 12}))
	})
})
