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

package store

import (
	"context"

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/database"
	"github.com/greenfolio/gf-api/observability/opentelemetry"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// SaveRun persists a completed backtest: the per-rebalance weights and stats
// tables, the daily performance table, and the summary row, all in a single
// transaction keyed by run ID.
func SaveRun(ctx context.Context, b *backtest.Backtest) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "store.SaveRun")
	defer span.End()

	subLog := log.With().Str("RunID", b.RunID.String()).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		subLog.Error().Stack().Err(err).Msg("could not get transaction to save run")
		return err
	}

	if err := saveWeights(ctx, trx, b); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save weights failed")
		subLog.Error().Stack().Err(err).Msg("could not save portfolio weights")
		rollback(ctx, trx)
		return err
	}

	if err := saveStats(ctx, trx, b); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save stats failed")
		subLog.Error().Stack().Err(err).Msg("could not save portfolio stats")
		rollback(ctx, trx)
		return err
	}

	if err := savePerformance(ctx, trx, b); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save performance failed")
		subLog.Error().Stack().Err(err).Msg("could not save performance records")
		rollback(ctx, trx)
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit run transaction")
		return err
	}

	subLog.Info().Msg("saved run to database")
	return nil
}

func saveWeights(ctx context.Context, trx pgx.Tx, b *backtest.Backtest) error {
	for _, plan := range b.Plans {
		for idx, asset := range plan.Assets {
			_, err := trx.Exec(ctx,
				`INSERT INTO portfolio_weights ("run_id", "rebalance_date", "asset_id", "weight")
				VALUES ($1, $2, $3, $4)`,
				b.RunID, plan.Date, asset, plan.Weights[idx])
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func saveStats(ctx context.Context, trx pgx.Tx, b *backtest.Backtest) error {
	for _, plan := range b.Plans {
		_, err := trx.Exec(ctx,
			`INSERT INTO portfolio_stats ("run_id", "rebalance_date", "expected_return", "volatility")
			VALUES ($1, $2, $3, $4)`,
			b.RunID, plan.Date, plan.ExpectedReturn, plan.Volatility)
		if err != nil {
			return err
		}
	}
	return nil
}

func savePerformance(ctx context.Context, trx pgx.Tx, b *backtest.Backtest) error {
	for _, rec := range b.Records {
		_, err := trx.Exec(ctx,
			`INSERT INTO performance ("run_id", "trade_date", "portfolio_return", "cumulative_value", "turnover")
			VALUES ($1, $2, $3, $4, $5)`,
			b.RunID, rec.Date, rec.PortfolioReturn, rec.CumulativeValue, rec.Turnover)
		if err != nil {
			return err
		}
	}

	_, err := trx.Exec(ctx,
		`INSERT INTO performance_summary ("run_id", "annualized_return", "annualized_volatility", "sharpe_ratio", "max_drawdown")
		VALUES ($1, $2, $3, $4, $5)`,
		b.RunID, b.Summary.AnnualizedReturn, b.Summary.AnnualizedVolatility,
		b.Summary.SharpeRatio, b.Summary.MaxDrawDown)
	return err
}

func rollback(ctx context.Context, trx pgx.Tx) {
	if err := trx.Rollback(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}
