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

package features

// NormalizeESG rescales a raw ESG cross-section to [0, 1] by min-max. A
// constant (or single-asset) cross-section carries no ranking information
// and maps to 0.5 for every asset.
func NormalizeESG(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	if len(raw) == 0 {
		return out
	}

	first := true
	var minScore, maxScore float64
	for _, v := range raw {
		if first {
			minScore, maxScore = v, v
			first = false
			continue
		}
		if v < minScore {
			minScore = v
		}
		if v > maxScore {
			maxScore = v
		}
	}

	if minScore == maxScore {
		for asset := range raw {
			out[asset] = 0.5
		}
		return out
	}

	for asset, v := range raw {
		out[asset] = (v - minScore) / (maxScore - minScore)
	}
	return out
}
