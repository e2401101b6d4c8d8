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

package optimize

import (
	"context"
	"runtime"
	"sync"

	"github.com/greenfolio/gf-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// SolveAll runs one solve per frame across a bounded worker pool. Each solve
// is a pure function of its frame, so fan-out needs no coordination; results
// are returned in frame order. The first failure cancels outstanding solves
// and is returned.
func SolveAll(ctx context.Context, frames []*InputFrame, cfg *Config, workers int) ([]*PortfolioWeights, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "optimize.SolveAll")
	defer span.End()

	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(frames) {
		workers = len(frames)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*PortfolioWeights, len(frames))
	jobs := make(chan int)

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	for ii := 0; ii < workers; ii++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				weights, err := Solve(ctx, frames[idx], cfg)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results[idx] = weights
			}
		}()
	}

	for idx := range frames {
		select {
		case jobs <- idx:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		log.Error().Stack().Err(firstErr).Msg("solve pool aborted")
		return nil, firstErr
	}
	return results, nil
}
