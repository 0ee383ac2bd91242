//go:build mage

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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pv-fund"
	modulePath = "github.com/penny-vault/pv-fund"

	// go-sqlite3 is built without extension loading
	buildTags = "sqlite_omit_load_extension"
)

var ldflags = fmt.Sprintf("-X %[1]s/common.commitHash=$COMMIT_HASH -X %[1]s/common.buildDate=$BUILD_DATE", modulePath)

// GOEXE overrides the go executable
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Build the pv-fund binary with the commit and build date stamped in
func Build() error {
	fmt.Println("Building...")
	return sh.RunWith(stampEnv(), goexe, goArgs("build", "-o", binaryName, "-ldflags", ldflags, "-v", ".")...)
}

// Install pv-fund into GOPATH/bin
func Install() error {
	return sh.RunWith(stampEnv(), goexe, goArgs("install", "-ldflags", ldflags, ".")...)
}

// Clean removes the binary and the default sqlite database
func Clean() {
	fmt.Println("Cleaning...")
	for _, fn := range []string{binaryName, "pv-fund.db"} {
		if err := os.Remove(fn); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "could not remove %s: %v\n", fn, err)
		}
	}
}

// Check runs the formatter, vet and the race enabled test suites
func Check() {
	mg.SerialDeps(Fmt, Vet, Test)
}

// Test runs every ginkgo suite with the race detector
func Test() error {
	fmt.Println("Go Test")
	out, err := sh.Output(goexe, goArgs("test", "-race", "./...")...)
	if err != nil || mg.Verbose() {
		fmt.Fprintln(os.Stderr, out)
	}
	return err
}

// Vet runs go vet
func Vet() error {
	fmt.Println("Go Vet")
	if err := sh.Run(goexe, "vet", "-tags", buildTags, "./..."); err != nil {
		return fmt.Errorf("go vet: %w", err)
	}
	return nil
}

// Fmt fails when any package has files gofmt would change
func Fmt() error {
	fmt.Println("Go Format")
	files, err := sourceFiles()
	if err != nil {
		return err
	}
	unformatted, err := sh.Output("gofmt", append([]string{"-l"}, files...)...)
	if err != nil {
		return err
	}
	if unformatted != "" {
		fmt.Println("not gofmt'ed:")
		fmt.Println(unformatted)
		return errors.New("improperly formatted go files")
	}
	return nil
}

// goArgs appends the build tags, and the exe build mode on windows, to a go
// subcommand
func goArgs(sub string, args ...string) []string {
	res := []string{sub, "-tags", buildTags}
	if runtime.GOOS == "windows" {
		res = append(res, "-buildmode", "exe")
	}
	return append(res, args...)
}

func stampEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

// sourceFiles lists the go files of every package in the module. gofmt
// recurses into directories, so files are listed per package to keep
// _examples and testdata out.
func sourceFiles() ([]string, error) {
	out, err := sh.Output(goexe, "list", "-tags", buildTags, "./...")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, pkg := range strings.Split(out, "\n") {
		if pkg == "" {
			continue
		}
		matches, err := filepath.Glob(filepath.Join("."+strings.TrimPrefix(pkg, modulePath), "*.go"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
