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

package survival

import (
	"fmt"
	"math"
	"sort"
)

// ciZ is the standard normal quantile for the 95% confidence band.
const ciZ = 1.96

// SurvFunc is a Kaplan-Meier survival function estimated from right-censored
// observations. All slices are aligned with Times, which lists the distinct
// observed times in ascending order, always starting at time 0. A SurvFunc is
// never modified after estimation.
type SurvFunc struct {
	Times     []float64 //distinct observed times, ascending, first entry is 0
	NRisk     []int     //subjects at risk at each time, including those censored exactly there
	NEvent    []int     //events at each time
	NCensor   []int     //censorings at each time
	SurvProb  []float64 //survival estimate at each time, non-increasing from 1
	SurvVar   []float64 //Greenwood variance of the estimate, +Inf once undefined
	CILower   []float64 //lower 95% confidence bound, clipped to [0,1]
	CIUpper   []float64 //upper 95% confidence bound, clipped to [0,1]
	CIDefined []bool    //false once the Greenwood variance is undefined
	NTotal    int       //total number of observations the curve was estimated from
}

// FitKaplanMeier estimates the survival function for a multiset of
// right-censored observations. Event and censoring counts are aggregated per
// distinct time; at every time t with n subjects at risk and d events the
// estimate steps down by the factor (1 - d/n). Subjects censored exactly at t
// count as at risk at t and leave the risk set afterwards. Times with only
// censorings are tabulated with a flat estimate so the curve is a complete
// step series through the last observation. The variance follows Greenwood's
// formula; from the first time where all subjects at risk die, the variance
// is undefined and the confidence band falls back to [0,1].
func FitKaplanMeier(obs []Observation) *SurvFunc {
	events := map[float64]int{}
	censored := map[float64]int{}
	seen := map[float64]bool{}
	times := []float64{}
	for _, o := range obs {
		if o.Event {
			events[o.Days]++
		} else {
			censored[o.Days]++
		}
		if !seen[o.Days] {
			seen[o.Days] = true
			times = append(times, o.Days)
		}
	}
	sort.Float64s(times)
	sf := &SurvFunc{NTotal: len(obs)}
	if len(times) == 0 || times[0] > 0 {
		// synthetic origin so the curve always starts at time 0
		sf.Times = append(sf.Times, 0)
		sf.NRisk = append(sf.NRisk, len(obs))
		sf.NEvent = append(sf.NEvent, 0)
		sf.NCensor = append(sf.NCensor, 0)
		sf.SurvProb = append(sf.SurvProb, 1.0)
		if len(obs) == 0 {
			sf.SurvVar = append(sf.SurvVar, math.Inf(1))
			sf.CILower = append(sf.CILower, 0.0)
			sf.CIUpper = append(sf.CIUpper, 1.0)
			sf.CIDefined = append(sf.CIDefined, false)
		} else {
			sf.SurvVar = append(sf.SurvVar, 0.0)
			sf.CILower = append(sf.CILower, 1.0)
			sf.CIUpper = append(sf.CIUpper, 1.0)
			sf.CIDefined = append(sf.CIDefined, true)
		}
	}
	surv := 1.0
	gwSum := 0.0
	atRisk := len(obs)
	for _, t := range times {
		d := events[t]
		c := censored[t]
		if d > 0 {
			surv = surv * (1.0 - float64(d)/float64(atRisk))
			if d == atRisk {
				gwSum = math.Inf(1)
			} else {
				gwSum = gwSum + float64(d)/(float64(atRisk)*float64(atRisk-d))
			}
		}
		var variance, lower, upper float64
		defined := true
		if math.IsInf(gwSum, 1) {
			variance = math.Inf(1)
			lower, upper = 0.0, 1.0
			defined = false
		} else {
			variance = surv * surv * gwSum
			margin := ciZ * math.Sqrt(variance)
			lower = math.Max(0.0, surv-margin)
			upper = math.Min(1.0, surv+margin)
		}
		sf.Times = append(sf.Times, t)
		sf.NRisk = append(sf.NRisk, atRisk)
		sf.NEvent = append(sf.NEvent, d)
		sf.NCensor = append(sf.NCensor, c)
		sf.SurvProb = append(sf.SurvProb, surv)
		sf.SurvVar = append(sf.SurvVar, variance)
		sf.CILower = append(sf.CILower, lower)
		sf.CIUpper = append(sf.CIUpper, upper)
		sf.CIDefined = append(sf.CIDefined, defined)
		atRisk = atRisk - d - c
	}
	return sf
}

// SurvivalPoint is the value of a survival function at a queried time.
type SurvivalPoint struct {
	Time      float64 //tabulated time whose estimate is in force at the queried day
	SurvProb  float64
	SurvVar   float64
	CILower   float64
	CIUpper   float64
	CIDefined bool
}

// At returns the survival estimate in force at the given day, i.e. the value
// of the greatest tabulated time not after it. Queries for negative days fail
// with ErrOutOfRange, as do queries beyond the last tabulated time, unless
// the estimate has reached 0 there and is known to remain 0.
func (sf *SurvFunc) At(day float64) (SurvivalPoint, error) {
	if day < 0 {
		return SurvivalPoint{}, fmt.Errorf("survival query at %g days: %w", day, ErrOutOfRange)
	}
	last := len(sf.Times) - 1
	if day > sf.Times[last] && sf.SurvProb[last] > 0 {
		return SurvivalPoint{}, fmt.Errorf("survival query at %g days beyond last observed time %g: %w",
			day, sf.Times[last], ErrOutOfRange)
	}
	i := sort.SearchFloat64s(sf.Times, day)
	if i > last || sf.Times[i] > day {
		i--
	}
	return SurvivalPoint{
		Time:      sf.Times[i],
		SurvProb:  sf.SurvProb[i],
		SurvVar:   sf.SurvVar[i],
		CILower:   sf.CILower[i],
		CIUpper:   sf.CIUpper[i],
		CIDefined: sf.CIDefined[i],
	}, nil
}

// Median returns the first tabulated time at which the survival estimate
// drops to 0.5 or below. The second result is false when the curve never
// reaches the median.
func (sf *SurvFunc) Median() (float64, bool) {
	for i, s := range sf.SurvProb {
		if s <= 0.5 {
			return sf.Times[i], true
		}
	}
	return 0, false
}

// Horizon returns the last tabulated time of the curve.
func (sf *SurvFunc) Horizon() float64 {
	return sf.Times[len(sf.Times)-1]
}
