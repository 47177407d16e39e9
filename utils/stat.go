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

package utils

import (
	"log"
	"math"
)

// Chi-square tail probability. Translation from cl-math-stats.

const pi = 3.141592653589793

var logPI = math.Log(pi)

var coef = [6]float64{76.18009173, -86.50532033, 24.01409822, -1.231739516, 0.120858003e-2, -0.536382e-5}

// gammaLn computes the natural logarithm of the gamma function.
func gammaLn(x float64) float64 {
	if x <= 0.0 {
		log.Panic("Error: argument to gammaLn must be positive: ", x)
	}
	if x > 1.0e302 {
		log.Panic("Error: argument to gammaLn too large: ", x)
	}
	if x < 1.0 {
		z := 1.0 - x
		return (math.Log(z) + logPI) - (gammaLn(1.0+z) + math.Log(math.Sin(pi*z)))
	}
	xx := x - 1.0
	tmp := xx + 5.5
	ser := 1.0
	tmp -= (xx + 0.5) * math.Log(tmp)
	for i := 0; i < 6; i++ {
		xx += 1.0
		ser += coef[i] / xx
	}
	return math.Log(2.50662827465*ser) - tmp
}

// gammaSeries computes the regularized lower incomplete gamma function P(a,x)
// by its series representation. Only valid for x < a+1, where the series
// converges quickly.
func gammaSeries(a, x float64) float64 {
	itmax := 1000
	eps := 3.0e-7
	gln := gammaLn(a)
	ap := a
	sum := 1.0 / a
	del := sum
	for i := 0; i < itmax; i++ {
		ap += 1.0
		del = del * x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*eps {
			return sum * math.Exp(-x+a*math.Log(x)-gln)
		}
	}
	log.Panic("Error: a = ", a, " too large or itmax too small in gammaSeries")
	return 0.0
}

// gammaCf computes the regularized upper incomplete gamma function Q(a,x) by
// its continued fraction representation. Only valid for x >= a+1.
func gammaCf(a, x float64) float64 {
	itmax := 1000
	eps := 3.0e-7
	fpmin := 1.0e-30
	gln := gammaLn(a)
	b := x + 1.0 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i <= itmax; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2.0
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h = h * del
		if math.Abs(del-1.0) < eps {
			return math.Exp(-x+a*math.Log(x)-gln) * h
		}
	}
	log.Panic("Error: a = ", a, " too large or itmax too small in gammaCf")
	return 0.0
}

// gammaQ computes the regularized upper incomplete gamma function Q(a,x),
// switching between the series and the continued fraction representation
// depending on where each converges.
func gammaQ(a, x float64) float64 {
	if x < 0.0 || a <= 0.0 {
		log.Panic("Error: invalid arguments to gammaQ: a = ", a, " x = ", x)
	}
	if x == 0.0 {
		return 1.0
	}
	if x < a+1.0 {
		return 1.0 - gammaSeries(a, x)
	}
	return gammaCf(a, x)
}

// ChiSquareSurvival computes the upper tail probability of a chi-square
// distribution with df degrees of freedom, i.e. the p-value of a chi-square
// distributed test statistic x.
func ChiSquareSurvival(x float64, df int) float64 {
	if df < 1 {
		log.Panic("Error: chi-square degrees of freedom must be positive: ", df)
	}
	if x <= 0.0 {
		return 1.0
	}
	return gammaQ(float64(df)/2.0, x/2.0)
}

// MinInt returns the smallest of two integers.
func MinInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// MaxInt returns the largest of two integers.
func MaxInt(x, y int) int {
	if x > y {
		return x
	}
	return y
}
