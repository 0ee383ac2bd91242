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
	"fmt"

	"github.com/vicanso/go-charts/v2"
)

// maxChartFunds bounds the number of bars in the score chart
const maxChartFunds = 15

// ScoreChart renders a PNG bar chart of the recommended funds' scores. A report
// without picks yields no chart.
func ScoreChart(rep *Report) ([]byte, error) {
	labels := make([]string, 0, maxChartFunds)
	scores := make([]float64, 0, maxChartFunds)

	for _, bp := range rep.Buckets {
		for _, pick := range bp.Picks {
			if len(scores) == maxChartFunds {
				break
			}
			labels = append(labels, shorten(pick.Name, 24))
			scores = append(scores, pick.Score)
		}
	}

	if len(scores) == 0 {
		return nil, nil
	}

	p, err := charts.BarRender(
		[][]float64{scores},
		charts.TitleTextOptionFunc(fmt.Sprintf("Recommended fund scores (%s alpha)", rep.AlphaStrategy)),
		charts.XAxisDataOptionFunc(labels),
		charts.ThemeOptionFunc(charts.ThemeDark),
		charts.WidthOptionFunc(960),
		charts.HeightOptionFunc(480),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return buf, nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
