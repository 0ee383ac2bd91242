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

package dataframe

import (
	"sort"
	"time"
)

// Map holds a collection of dataframes keyed by an identifier, typically the
// scheme code of a fund
type Map map[string]*DataFrame

// Keys returns the map keys in ascending order
func (dfMap Map) Keys() []string {
	keys := make([]string, 0, len(dfMap))
	for k := range dfMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MaxEnd returns the latest end date across all dataframes in the map
func (dfMap Map) MaxEnd() time.Time {
	var end time.Time
	for _, df := range dfMap {
		if df.End().After(end) {
			end = df.End()
		}
	}
	return end
}

// Trim calls dataframe.Trim on each dataframe in the map and returns a new map
func (dfMap Map) Trim(begin, end time.Time) Map {
	trimmed := make(Map, len(dfMap))
	for k, df := range dfMap {
		trimmed[k] = df.Trim(begin, end)
	}
	return trimmed
}
