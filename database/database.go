// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PgxIface is the subset of the pgx pool interface the engine needs; it is
// satisfied by both *pgxpool.Pool and pgxmock connections
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var (
	ErrNotConnected = errors.New("database pool is not initialized")
)

var pool PgxIface

// Connect to the database pool specified by the database.url configuration
func Connect(ctx context.Context) error {
	dbURL := viper.GetString("database.url")
	subLog := log.With().Str("DbUrl", dbURL).Logger()

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not parse database URL")
		return err
	}

	p, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not connect to database")
		return err
	}

	pool = p
	return nil
}

// SetPool replaces the connection pool; used by tests to install a pgxmock
// connection
func SetPool(p PgxIface) {
	pool = p
}

// Trx begins a new transaction on the shared pool
func Trx(ctx context.Context) (pgx.Tx, error) {
	if pool == nil {
		return nil, ErrNotConnected
	}
	return pool.Begin(ctx)
}
