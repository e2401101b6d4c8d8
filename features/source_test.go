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
	"context"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/features"
)

var _ = Describe("Source", func() {
	var (
		ctx  context.Context
		src  *features.Source
		date time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		date = marchDate(20)

		// AAPL compounds 1% a day, MSFT is flat
		var prices strings.Builder
		prices.WriteString("dt,asset_id,adj_close\n")
		aapl := 100.0
		for dom := 1; dom <= 20; dom++ {
			prices.WriteString(fmt.Sprintf("2023-03-%02d,AAPL,%.6f\n", dom, aapl))
			prices.WriteString(fmt.Sprintf("2023-03-%02d,MSFT,50.0\n", dom))
			aapl *= 1.01
		}

		esg := "dt,asset_id,esg_score\n2023-03-20,AAPL,80\n2023-03-20,MSFT,20\n"

		csv := data.NewCSVSource()
		Expect(csv.LoadPrices(strings.NewReader(prices.String()))).To(Succeed())
		Expect(csv.LoadESGScores(strings.NewReader(esg))).To(Succeed())

		src = features.NewSource(csv, csv.ESGScores, 5, 5)
	})

	It("derives expected returns from trailing price history", func() {
		expected, err := src.ExpectedReturns(ctx, date)
		Expect(err).To(BeNil())
		// the fixture formats prices with six decimals, so returns are only
		// accurate to ~1e-8
		Expect(expected["AAPL"]).To(BeNumerically("~", 0.01, 1e-6))
		Expect(expected["MSFT"]).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("derives covariance cells with floored variances", func() {
		cells, err := src.Covariances(ctx, date)
		Expect(err).To(BeNil())
		// constant returns have no sample variance; the floor applies
		Expect(cells[data.AssetPair{Row: "MSFT", Col: "MSFT"}]).To(Equal(1e-6))
		Expect(cells[data.AssetPair{Row: "AAPL", Col: "AAPL"}]).To(BeNumerically(">=", 1e-6))
	})

	It("normalizes raw ESG scores per date", func() {
		scores, err := src.ESGScores(ctx, date)
		Expect(err).To(BeNil())
		Expect(scores).To(HaveKeyWithValue("AAPL", 1.0))
		Expect(scores).To(HaveKeyWithValue("MSFT", 0.0))
	})

	It("serves realized returns trimmed to the requested range", func() {
		df, err := src.RealizedReturns(ctx, marchDate(10), marchDate(15))
		Expect(err).To(BeNil())
		Expect(df.Start()).To(Equal(marchDate(10)))
		Expect(df.End()).To(Equal(marchDate(15)))

		// the leading price buffer means even the first row is a true return
		v, ok := df.ValueAt(marchDate(10), "AAPL")
		Expect(ok).To(BeTrue())
		Expect(v).To(BeNumerically("~", 0.01, 1e-6))
	})
})
