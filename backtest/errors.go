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

package backtest

import "errors"

var (
	ErrMissingReturn = errors.New("realized return missing for held asset")
	ErrNoPlans       = errors.New("no rebalance plans supplied")
	ErrUnorderedPlan = errors.New("rebalance plans are not strictly increasing in date")
	ErrNoRecords     = errors.New("no backtest records to summarize")
	ErrBadPeriods    = errors.New("trading periods per year must be positive")
	ErrCancelled     = errors.New("simulation cancelled")
)
