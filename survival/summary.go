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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"math"
)

// GroupSummary describes the survival experience of one group of subjects.
// Follow-up statistics that cannot be computed for the group size are NaN,
// as are survival probabilities at horizons beyond the observed follow-up.
type GroupSummary struct {
	Subjects       int
	Events         int
	Censored       int
	TotalFollowUp  float64   //person-days of follow-up
	MeanFollowUp   float64
	StdDevFollowUp float64
	MedianTime     float64   //first time the survival estimate drops to 0.5 or below
	MedianReached  bool
	Horizons       []float64 //requested horizons in days
	HorizonProbs   []float64 //survival estimate at each horizon
	HorizonLows    []float64 //lower 95% confidence bound at each horizon
	HorizonHighs   []float64 //upper 95% confidence bound at each horizon
}

// Summarize computes the summary statistics of a group from its observations
// and its fitted survival function, evaluated at the given horizons.
func Summarize(obs []Observation, sf *SurvFunc, horizons []float64) *GroupSummary {
	s := &GroupSummary{Subjects: len(obs), Horizons: horizons}
	days := make([]float64, len(obs))
	for i, o := range obs {
		days[i] = o.Days
		if o.Event {
			s.Events++
		} else {
			s.Censored++
		}
	}
	s.TotalFollowUp = floats.Sum(days)
	s.MeanFollowUp = math.NaN()
	s.StdDevFollowUp = math.NaN()
	if len(days) > 0 {
		s.MeanFollowUp = stat.Mean(days, nil)
	}
	if len(days) > 1 {
		s.StdDevFollowUp = stat.StdDev(days, nil)
	}
	s.MedianTime, s.MedianReached = sf.Median()
	for _, h := range horizons {
		p, err := sf.At(h)
		if err != nil {
			s.HorizonProbs = append(s.HorizonProbs, math.NaN())
			s.HorizonLows = append(s.HorizonLows, math.NaN())
			s.HorizonHighs = append(s.HorizonHighs, math.NaN())
			continue
		}
		s.HorizonProbs = append(s.HorizonProbs, p.SurvProb)
		s.HorizonLows = append(s.HorizonLows, p.CILower)
		s.HorizonHighs = append(s.HorizonHighs, p.CIUpper)
	}
	return s
}
