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

package common_test

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/common"
)

var _ = Describe("Version", func() {
	It("omits build metadata on releases", func() {
		Expect(common.Version{Major: 1, Minor: 2, Patch: 3}.String()).To(Equal("1.2.3"))
	})

	It("marks pre-releases", func() {
		Expect(common.Version{Major: 0, Minor: 1, Suffix: "dev"}.String()).To(HavePrefix("0.1.0-dev"))
	})

	It("describes the build", func() {
		out := common.BuildVersionString()
		Expect(out).To(HavePrefix("pv-fund v" + common.CurrentVersion.String()))
		Expect(out).To(ContainSubstring(runtime.GOOS + "/" + runtime.GOARCH))
		Expect(out).To(ContainSubstring("Built with: " + runtime.Version()))
	})
})
