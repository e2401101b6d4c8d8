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

package data

import (
	"context"
	"time"

	"github.com/greenfolio/gf-api/database"
	"github.com/greenfolio/gf-api/dataframe"
	"github.com/greenfolio/gf-api/observability/opentelemetry"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// PgDb serves the feature and return tables from Postgres
type PgDb struct {
}

// NewPgDb creates a new Postgres data provider
func NewPgDb() *PgDb {
	return &PgDb{}
}

func (p *PgDb) ExpectedReturns(ctx context.Context, date time.Time) (map[string]float64, error) {
	return p.crossSection(ctx, "pgdb.ExpectedReturns",
		"SELECT asset_id, expected_return FROM feature_returns WHERE dt=$1", date)
}

func (p *PgDb) ESGScores(ctx context.Context, date time.Time) (map[string]float64, error) {
	return p.crossSection(ctx, "pgdb.ESGScores",
		"SELECT asset_id, esg_score FROM feature_esg WHERE dt=$1", date)
}

func (p *PgDb) Covariances(ctx context.Context, date time.Time) (map[AssetPair]float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pgdb.Covariances")
	defer span.End()

	subLog := log.With().Time("Date", date).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying covariances")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT asset_i, asset_j, cov FROM feature_covariances WHERE dt=$1", date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query covariances")
		rollback(ctx, trx)
		return nil, err
	}

	cells := make(map[AssetPair]float64)
	for rows.Next() {
		var pair AssetPair
		var cov float64
		if err := rows.Scan(&pair.Row, &pair.Col, &cov); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan covariance row")
			rollback(ctx, trx)
			return nil, err
		}
		cells[pair] = cov
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}
	return cells, nil
}

func (p *PgDb) RealizedReturns(ctx context.Context, begin, end time.Time) (*dataframe.DataFrame, error) {
	return p.rangeFrame(ctx, "pgdb.RealizedReturns",
		"SELECT dt, asset_id, realized_return FROM realized_returns WHERE dt BETWEEN $1 AND $2 ORDER BY dt",
		begin, end)
}

func (p *PgDb) AdjustedClose(ctx context.Context, begin, end time.Time) (*dataframe.DataFrame, error) {
	return p.rangeFrame(ctx, "pgdb.AdjustedClose",
		"SELECT dt, asset_id, adj_close FROM prices WHERE dt BETWEEN $1 AND $2 ORDER BY dt",
		begin, end)
}

func (p *PgDb) crossSection(ctx context.Context, spanName, query string, date time.Time) (map[string]float64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, spanName)
	defer span.End()

	subLog := log.With().Time("Date", date).Str("Query", query).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying cross section")
		return nil, err
	}

	rows, err := trx.Query(ctx, query, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query cross section")
		rollback(ctx, trx)
		return nil, err
	}

	vals := make(map[string]float64)
	for rows.Next() {
		var assetID string
		var v float64
		if err := rows.Scan(&assetID, &v); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan cross-section row")
			rollback(ctx, trx)
			return nil, err
		}
		vals[assetID] = v
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}
	return vals, nil
}

func (p *PgDb) rangeFrame(ctx context.Context, spanName, query string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, spanName)
	defer span.End()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	subLog := log.With().Time("Begin", begin).Time("End", end).Str("Query", query).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying range")
		return nil, err
	}

	rows, err := trx.Query(ctx, query, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query range")
		rollback(ctx, trx)
		return nil, err
	}

	var records []dateAssetValue
	for rows.Next() {
		var rec dateAssetValue
		if err := rows.Scan(&rec.date, &rec.asset, &rec.value); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan range row")
			rollback(ctx, trx)
			return nil, err
		}
		records = append(records, rec)
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	return frameFromRows(records, begin, end)
}

func rollback(ctx context.Context, trx pgx.Tx) {
	if err := trx.Rollback(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}
