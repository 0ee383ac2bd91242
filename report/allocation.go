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
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAllocation = errors.New("invalid allocation")
)

//go:embed allocation.toml
var defaultAllocation []byte

// Bucket is a slice of the recommended portfolio. A fund belongs to a bucket
// when any keyword appears in its name.
type Bucket struct {
	Name     string   `toml:"name" json:"name"`
	Weight   float64  `toml:"weight" json:"weight"`
	Keywords []string `toml:"keywords" json:"keywords"`
}

// Allocation is the ordered list of buckets
type Allocation struct {
	Buckets []Bucket `toml:"bucket" json:"buckets"`
}

// Matches reports whether name contains one of the bucket keywords, ignoring case
func (b Bucket) Matches(name string) bool {
	name = strings.ToLower(name)
	for _, kw := range b.Keywords {
		if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DefaultAllocation returns the built-in five bucket allocation
func DefaultAllocation() Allocation {
	alloc, err := ParseAllocation(defaultAllocation)
	if err != nil {
		log.Panic().Err(err).Msg("built-in allocation is invalid")
	}
	return alloc
}

// LoadAllocation reads an allocation from a TOML file. An empty file name
// returns the default allocation.
func LoadAllocation(fn string) (Allocation, error) {
	if fn == "" {
		return DefaultAllocation(), nil
	}

	raw, err := os.ReadFile(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not read allocation file")
		return Allocation{}, err
	}

	return ParseAllocation(raw)
}

// ParseAllocation decodes and validates a TOML allocation
func ParseAllocation(raw []byte) (Allocation, error) {
	alloc := Allocation{}
	if err := toml.Unmarshal(raw, &alloc); err != nil {
		return Allocation{}, fmt.Errorf("%w: %s", ErrInvalidAllocation, err.Error())
	}

	if err := alloc.Validate(); err != nil {
		return Allocation{}, err
	}

	return alloc, nil
}

// Validate checks that every bucket is named, has keywords and that the
// weights are positive and sum to at most 1
func (alloc Allocation) Validate() error {
	if len(alloc.Buckets) == 0 {
		return fmt.Errorf("%w: no buckets", ErrInvalidAllocation)
	}

	total := 0.0
	for _, b := range alloc.Buckets {
		if b.Name == "" {
			return fmt.Errorf("%w: bucket without a name", ErrInvalidAllocation)
		}
		if len(b.Keywords) == 0 {
			return fmt.Errorf("%w: bucket %q has no keywords", ErrInvalidAllocation, b.Name)
		}
		if b.Weight <= 0 {
			return fmt.Errorf("%w: bucket %q weight must be positive", ErrInvalidAllocation, b.Name)
		}
		total += b.Weight
	}

	if total > 1.0+1e-9 {
		return fmt.Errorf("%w: weights sum to %.2f", ErrInvalidAllocation, total)
	}

	return nil
}

// Bucket returns the first bucket matching name
func (alloc Allocation) Bucket(name string) (Bucket, bool) {
	for _, b := range alloc.Buckets {
		if b.Matches(name) {
			return b, true
		}
	}
	return Bucket{}, false
}
