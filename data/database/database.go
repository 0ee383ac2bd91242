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

package database

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// types

type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	ErrNoPool = errors.New("database pool has not been configured")
)

// Private

var pool PgxIface
var openTransactions map[string]string
var trxLock sync.Mutex

// Public

func SetPool(myPool PgxIface) {
	trxLock.Lock()
	defer trxLock.Unlock()
	openTransactions = make(map[string]string)
	pool = myPool
}

func Connect(ctx context.Context) error {
	var err error
	myPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// LogOpenTransactions writes an INFO log for each open transaction
func LogOpenTransactions() {
	trxLock.Lock()
	defer trxLock.Unlock()
	for k, v := range openTransactions {
		log.Info().Str("TrxId", k).Str("Caller", v).Msg("open transaction")
	}
}

// NumOpenTransactions returns the number of transactions that have been started
// but neither committed nor rolled back
func NumOpenTransactions() int {
	trxLock.Lock()
	defer trxLock.Unlock()
	return len(openTransactions)
}

// Begin starts a new transaction on the configured pool. The caller location is
// recorded so leaked transactions can be found with LogOpenTransactions.
func Begin(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		return nil, ErrNoPool
	}

	trx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	_, file, lineno, ok := runtime.Caller(1)
	caller := fmt.Sprintf("[%v] %s:%d", ok, file, lineno)
	trxID := uuid.New().String()

	trxLock.Lock()
	openTransactions[trxID] = caller
	trxLock.Unlock()

	return &PvDbTx{
		id: trxID,
		tx: trx,
	}, nil
}
