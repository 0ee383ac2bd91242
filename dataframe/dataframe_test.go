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

package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/dataframe"
)

func day(d int) time.Time {
	return time.Date(2021, time.January, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero columns", func() {
			Expect(df.ColCount()).To(Equal(0))
		})

		It("does not error on drop", func() {
			df = df.Drop(math.NaN())
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero start and end dates", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})

		It("prints no data", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})

		It("trims to an empty dataframe", func() {
			Expect(df.Trim(day(1), day(5)).Len()).To(Equal(0))
		})
	})

	Context("with a single column of 5 values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = dataframe.New("100001", []time.Time{day(1), day(2), day(3), day(4), day(5)}, []float64{1, 2, math.NaN(), 4, 5})
		})

		It("has the column index", func() {
			Expect(df.ColIndex("100001")).To(Equal(0))
			Expect(df.ColIndex("missing")).To(Equal(-1))
			Expect(df.Col("missing")).To(BeNil())
		})

		It("drops NaN rows without modifying the original", func() {
			dropped := df.Drop(math.NaN())
			Expect(dropped.Len()).To(Equal(4))
			Expect(dropped.Dates).To(Equal([]time.Time{day(1), day(2), day(4), day(5)}))
			Expect(dropped.Vals[0]).To(Equal([]float64{1, 2, 4, 5}))
			Expect(df.Len()).To(Equal(5))
		})

		It("copies deeply", func() {
			cp := df.Copy()
			cp.Vals[0][0] = 100
			Expect(df.Vals[0][0]).To(Equal(1.0))
		})

		It("lags values by one row", func() {
			lagged := df.Lag(1)
			Expect(math.IsNaN(lagged.Vals[0][0])).To(BeTrue())
			Expect(lagged.Vals[0][1]).To(Equal(1.0))
			Expect(lagged.Vals[0][4]).To(Equal(4.0))
		})

		It("trims inclusively", func() {
			trimmed := df.Trim(day(2), day(4))
			Expect(trimmed.Dates).To(Equal([]time.Time{day(2), day(3), day(4)}))
			Expect(trimmed.Vals[0][0]).To(Equal(2.0))
		})

		It("trims to empty when the range is inverted", func() {
			Expect(df.Trim(day(4), day(2)).Len()).To(Equal(0))
		})

		It("trims to empty when the range is outside the data", func() {
			Expect(df.Trim(day(10), day(20)).Len()).To(Equal(0))
		})

		It("trims when the range extends beyond the data", func() {
			trimmed := df.Trim(day(3), day(30))
			Expect(trimmed.Dates).To(Equal([]time.Time{day(3), day(4), day(5)}))
		})

		It("refuses rows that are not after the last date", func() {
			Expect(func() { df.InsertRow(day(5), 1.0) }).To(Panic())
		})

		It("appends rows after the last date", func() {
			df.InsertRow(day(6), 6.0)
			Expect(df.Len()).To(Equal(6))
			Expect(df.End()).To(Equal(day(6)))
		})

		It("renders a table with the row count", func() {
			Expect(df.Table()).To(ContainSubstring("2021-01-05"))
			Expect(df.Table()).To(ContainSubstring("100001"))
		})
	})

	Context("when aligning", func() {
		var (
			bench *dataframe.DataFrame
		)

		BeforeEach(func() {
			bench = dataframe.New("bench", []time.Time{day(2), day(4), day(6)}, []float64{20, 40, 60})
		})

		It("forward fills onto new dates", func() {
			res := bench.ForwardFillReindex([]time.Time{day(1), day(2), day(3), day(5), day(7)})
			Expect(math.IsNaN(res.Vals[0][0])).To(BeTrue())
			Expect(res.Vals[0][1:]).To(Equal([]float64{20, 20, 40, 60}))
		})

		It("drops duplicate dates keeping the first", func() {
			dup := &dataframe.DataFrame{
				Dates:    []time.Time{day(1), day(1), day(2)},
				ColNames: []string{"a"},
				Vals:     [][]float64{{1, 2, 3}},
			}
			res := dup.DropDuplicateDates()
			Expect(res.Dates).To(Equal([]time.Time{day(1), day(2)}))
			Expect(res.Vals[0]).To(Equal([]float64{1, 3}))
		})

		It("joins on exact dates only", func() {
			fund := dataframe.New("fund", []time.Time{day(1), day(2), day(3), day(4)}, []float64{1, 2, 3, 4})
			res := fund.Join(bench)
			Expect(res.ColNames).To(Equal([]string{"fund", "bench"}))
			Expect(res.Dates).To(Equal([]time.Time{day(2), day(4)}))
			Expect(res.Col("fund")).To(Equal([]float64{2, 4}))
			Expect(res.Col("bench")).To(Equal([]float64{20, 40}))
		})
	})

	Context("in a map", func() {
		It("finds the latest end and trims every member", func() {
			dfMap := dataframe.Map{
				"b": dataframe.New("b", []time.Time{day(1), day(2), day(3)}, []float64{1, 2, 3}),
				"a": dataframe.New("a", []time.Time{day(2), day(9)}, []float64{1, 2}),
			}
			Expect(dfMap.Keys()).To(Equal([]string{"a", "b"}))
			Expect(dfMap.MaxEnd()).To(Equal(day(9)))
			trimmed := dfMap.Trim(day(2), day(3))
			Expect(trimmed["a"].Len()).To(Equal(1))
			Expect(trimmed["b"].Len()).To(Equal(2))
		})
	})
})
