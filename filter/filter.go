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

package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgsql"
	"github.com/jackc/pgx/v4"
)

var (
	ErrEmptyFrom          = errors.New("'from' cannot be empty")
	ErrInvalidWhere       = errors.New("where clauses must take the form [OP].[value]")
	ErrUnknownOperator    = errors.New("unrecognized operator")
	ErrInvalidOrder       = errors.New("order must take the form [column] or [column].[asc|desc]")
	ErrColumnNotSupported = errors.New("column is not supported")
)

var operators = map[string]string{
	"eq":    "=",
	"gt":    ">",
	"gte":   ">=",
	"lt":    "<",
	"lte":   "<=",
	"neq":   "<>",
	"like":  "like",
	"ilike": "ilike",
}

// BuildQuery creates a parameterized select statement. fields are sanitized as
// identifiers while safeFields are used verbatim. where maps a column to an
// expression of the form `op.value`, for example `sharpe: gt.0`. order is either
// a column name or `column.asc` / `column.desc`.
func BuildQuery(from string, fields []string, safeFields []string, where map[string]string, order string) (string, []interface{}, error) {
	if strings.Compare(from, "") == 0 {
		return "", nil, ErrEmptyFrom
	}
	stmt := &pgsql.SelectStatement{}
	for _, ff := range fields {
		stmt.Select(pgx.Identifier{ff}.Sanitize())
	}

	for _, ff := range safeFields {
		stmt.Select(ff)
	}

	stmt.From(pgx.Identifier{from}.Sanitize())

	// sort keys so the placeholder order is stable
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p := strings.SplitN(where[k], ".", 2)
		if len(p) != 2 {
			return "", nil, ErrInvalidWhere
		}
		op, val := p[0], p[1]
		sqlOp, ok := operators[op]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
		}
		stmt.Where(fmt.Sprintf("%s %s ?", pgx.Identifier{k}.Sanitize(), sqlOp), val)
	}

	if order != "" {
		orderBy, err := buildOrder(order)
		if err != nil {
			return "", nil, err
		}
		stmt.Order(orderBy)
	}

	sql, args := pgsql.Build(stmt)
	return sql, args, nil
}

func buildOrder(order string) (string, error) {
	p := strings.SplitN(order, ".", 2)
	col := pgx.Identifier{p[0]}.Sanitize()
	if len(p) == 1 {
		return col, nil
	}
	switch strings.ToLower(p[1]) {
	case "asc":
		return col + " ASC", nil
	case "desc":
		return col + " DESC", nil
	default:
		return "", ErrInvalidOrder
	}
}

// Restrict returns an error if any key in where or the column named by order is
// not in allowed
func Restrict(where map[string]string, order string, allowed []string) error {
	allowedMap := make(map[string]bool, len(allowed))
	for _, col := range allowed {
		allowedMap[col] = true
	}

	for k := range where {
		if !allowedMap[k] {
			return fmt.Errorf("%w: %s", ErrColumnNotSupported, k)
		}
	}

	if order != "" {
		col := strings.SplitN(order, ".", 2)[0]
		if !allowedMap[col] {
			return fmt.Errorf("%w: %s", ErrColumnNotSupported, col)
		}
	}

	return nil
}
