// RTSA: Renal Transplant Survival Analysis Library
// Copyright (c) 2023 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/rtsa/blob/master/LICENSE.txt>.

package utils_test

import (
	"gonum.org/v1/gonum/stat/distuv"
	"math"
	"rtsa/utils"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestGammaLn(t *testing.T) {
	cases := []struct {
		x    float64
		want float64
	}{
		{1, 0},
		{2, 0},
		{5, 3.1780538303479458},
		{7, 6.579251212010101},
		{0.5, 0.5723649429247001},
	}
	for _, c := range cases {
		if got := utils.GammaLn(c.x); !almostEqual(got, c.want, 1e-9) {
			t.Errorf("expected the log gamma of %v to be %v, got %v", c.x, c.want, got)
		}
	}
	want := math.Log(math.Pi / math.Sin(0.05*math.Pi))
	if got := utils.GammaLn(0.05) + utils.GammaLn(0.95); !almostEqual(got, want, 1e-8) {
		t.Errorf("expected the reflection identity to hold, got %v instead of %v", got, want)
	}
}

func TestChiSquareSurvival(t *testing.T) {
	criticalValues := []struct {
		x  float64
		df int
	}{
		{3.841, 1},
		{5.991, 2},
		{7.815, 3},
	}
	for _, c := range criticalValues {
		if got := utils.ChiSquareSurvival(c.x, c.df); !almostEqual(got, 0.05, 5e-4) {
			t.Errorf("expected a tail probability of 0.05 at %v with %d degrees of freedom, got %v",
				c.x, c.df, got)
		}
	}
	for _, x := range []float64{0.5, 1, 3, 5, 10} {
		if got, want := utils.ChiSquareSurvival(x, 2), math.Exp(-x/2.0); !almostEqual(got, want, 1e-6) {
			t.Errorf("expected a tail probability of %v at %v with 2 degrees of freedom, got %v",
				want, x, got)
		}
	}
	if got := utils.ChiSquareSurvival(0, 5); got != 1 {
		t.Errorf("expected a tail probability of 1 at 0, got %v", got)
	}
	if got := utils.ChiSquareSurvival(-3, 1); got != 1 {
		t.Errorf("expected a tail probability of 1 for a negative statistic, got %v", got)
	}
}

func TestChiSquareSurvivalMatchesGonum(t *testing.T) {
	for _, df := range []int{1, 2, 3, 5, 10} {
		dist := distuv.ChiSquared{K: float64(df)}
		for _, x := range []float64{0.5, 1, 2, 3.84, 5, 10, 20} {
			got := utils.ChiSquareSurvival(x, df)
			want := dist.Survival(x)
			if !almostEqual(got, want, 1e-5) {
				t.Errorf("expected a tail probability of %v at %v with %d degrees of freedom, got %v",
					want, x, df, got)
			}
		}
	}
}

func TestMinMaxInt(t *testing.T) {
	if utils.MinInt(3, 5) != 3 || utils.MinInt(5, 3) != 3 {
		t.Error("expected MinInt to return the smallest integer")
	}
	if utils.MaxInt(3, 5) != 5 || utils.MaxInt(5, 3) != 5 {
		t.Error("expected MaxInt to return the largest integer")
	}
}
