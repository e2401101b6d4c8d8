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

package features_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/stat"

	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/dataframe"
	"github.com/greenfolio/gf-api/features"
)

var _ = Describe("CovarianceCells", func() {
	var rets *dataframe.DataFrame

	BeforeEach(func() {
		rets = dataframe.New("AAPL", "MSFT")
		vals := [][]float64{
			{0.010, -0.004},
			{-0.002, 0.008},
			{0.005, 0.001},
			{-0.007, 0.003},
			{0.004, -0.002},
		}
		for idx, row := range vals {
			rets.InsertRow(marchDate(idx+1), row[0], row[1])
		}
	})

	It("matches the gonum sample covariance over the window", func() {
		cells, err := features.CovarianceCells(rets, marchDate(5), 5)
		Expect(err).To(BeNil())

		aapl := rets.Col("AAPL")
		msft := rets.Col("MSFT")
		Expect(cells[data.AssetPair{Row: "AAPL", Col: "AAPL"}]).To(BeNumerically("~", stat.Variance(aapl, nil), 1e-12))
		Expect(cells[data.AssetPair{Row: "AAPL", Col: "MSFT"}]).To(BeNumerically("~", stat.Covariance(aapl, msft, nil), 1e-12))
	})

	It("emits a symmetric cell map", func() {
		cells, err := features.CovarianceCells(rets, marchDate(5), 5)
		Expect(err).To(BeNil())
		Expect(cells[data.AssetPair{Row: "AAPL", Col: "MSFT"}]).To(
			Equal(cells[data.AssetPair{Row: "MSFT", Col: "AAPL"}]))
	})

	It("floors degenerate variances", func() {
		flat := dataframe.New("FLAT")
		for dom := 1; dom <= 5; dom++ {
			flat.InsertRow(marchDate(dom), 0.0)
		}
		cells, err := features.CovarianceCells(flat, marchDate(5), 5)
		Expect(err).To(BeNil())
		Expect(cells[data.AssetPair{Row: "FLAT", Col: "FLAT"}]).To(Equal(1e-6))
	})

	It("drops assets with incomplete history in the window", func() {
		rets = dataframe.New("AAPL", "NEWCO")
		rets.InsertRow(marchDate(1), 0.01, math.NaN())
		rets.InsertRow(marchDate(2), -0.01, 0.02)
		rets.InsertRow(marchDate(3), 0.02, 0.01)

		cells, err := features.CovarianceCells(rets, marchDate(3), 3)
		Expect(err).To(BeNil())
		Expect(cells).To(HaveKey(data.AssetPair{Row: "AAPL", Col: "AAPL"}))
		Expect(cells).ToNot(HaveKey(data.AssetPair{Row: "NEWCO", Col: "NEWCO"}))
	})

	It("errors when history is shorter than the window", func() {
		_, err := features.CovarianceCells(rets, marchDate(5), 10)
		Expect(err).To(MatchError(features.ErrInsufficientHistory))
	})

	It("errors when no asset has complete history", func() {
		gaps := dataframe.New("A")
		gaps.InsertRow(marchDate(1), math.NaN())
		gaps.InsertRow(marchDate(2), math.NaN())
		_, err := features.CovarianceCells(gaps, marchDate(2), 2)
		Expect(err).To(MatchError(features.ErrInsufficientHistory))
	})
})

var _ = Describe("NormalizeESG", func() {
	It("rescales scores to the unit interval by min-max", func() {
		out := features.NormalizeESG(map[string]float64{"A": 20, "B": 60, "C": 100})
		Expect(out).To(HaveKeyWithValue("A", 0.0))
		Expect(out).To(HaveKeyWithValue("B", 0.5))
		Expect(out).To(HaveKeyWithValue("C", 1.0))
	})

	It("maps a constant cross-section to one half", func() {
		out := features.NormalizeESG(map[string]float64{"A": 42, "B": 42})
		Expect(out).To(HaveKeyWithValue("A", 0.5))
		Expect(out).To(HaveKeyWithValue("B", 0.5))
	})

	It("maps a single asset to one half", func() {
		out := features.NormalizeESG(map[string]float64{"A": 42})
		Expect(out).To(HaveKeyWithValue("A", 0.5))
	})

	It("handles an empty cross-section", func() {
		Expect(features.NormalizeESG(map[string]float64{})).To(BeEmpty())
	})
})
