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
	"errors"
	"fmt"
	"github.com/exascience/pargo/parallel"
	"sort"
	"time"
)

const (
	PatientDeath = 0
	GraftLoss    = 1
)

// EventTypeName returns a printable name for an event type.
func EventTypeName(event int) string {
	if event == PatientDeath {
		return "death"
	}
	return "graft loss"
}

// Subject represents one transplanted patient parsed from the registry input.
type Subject struct {
	Row            int        //line number in the registry file, serves as the subject identifier
	TransplantDate time.Time  //date of transplantation, the time origin; zero value when missing
	DeathDate      *time.Time //date of death; nil when no death was recorded
	GraftLossDate  *time.Time //date of graft loss; nil when no graft loss was recorded
	Year           int        //transplant year, the default grouping key; 0 when the transplant date is missing
}

// EventDate returns the date at which the given event type occurred for a
// subject, or nil when that event was not recorded.
func (s *Subject) EventDate(event int) *time.Time {
	if event == PatientDeath {
		return s.DeathDate
	}
	return s.GraftLossDate
}

// Observation is a single right-censored time-to-event record: the number of
// days between the transplant and the event when Event is true, or between
// the transplant and the censoring reference date when Event is false.
type Observation struct {
	Days  float64
	Event bool
}

var (
	// ErrInsufficientData flags statistics requested over groups with too few usable observations.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateVariance flags test statistics whose variance estimate is zero or singular.
	ErrDegenerateVariance = errors.New("degenerate variance")
	// ErrOutOfRange flags point queries outside the tabulated range of a survival function.
	ErrOutOfRange = errors.New("out of range")
)

// InvalidRecordError reports a subject record that cannot yield a valid
// observation, e.g. a missing transplant date or an event recorded before the
// transplant. Such records are excluded from the analysis and reported, they
// never abort a run.
type InvalidRecordError struct {
	Row    int
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record at row %d: %s", e.Row, e.Reason)
}

// Analysis contains the inputs and outputs of a survival analysis for one
// event type over a subject population. All slices per transplant year are
// aligned with Years.
type Analysis struct {
	Event         int               //PatientDeath or GraftLoss
	Name          string            //name of the analysis, used to generate names for output files
	CensorDate    time.Time         //censoring reference date used for all observations
	Horizons      []float64         //fixed horizon days reported in the summaries
	Report        *BuildReport      //exclusions found while building the pooled observations
	Pooled        *SurvFunc         //survival curve over all subjects
	PooledSummary *GroupSummary     //summary row over all subjects
	Years         []int             //ascending transplant years with at least one subject
	Curves        []*SurvFunc       //survival curve per transplant year
	Summaries     []*GroupSummary   //summary row per transplant year
	Global        *LogRankResult    //k-sample log-rank over all transplant years
	GlobalErr     error             //set instead of Global when the k-sample test is degenerate
	Pairwise      []*PairwiseResult //two-sample log-rank per transplant year pair
}

// Analyze runs the full survival analysis for one event type: it builds the
// pooled observations, partitions the subjects by transplant year, fits the
// pooled and per-year Kaplan-Meier curves, summarizes each group at the given
// horizon days, and compares the years with the global k-sample log-rank test
// and all pairwise two-sample tests. The per-year curves and summaries are
// computed in parallel over the years. When iter > 0, every pairwise
// comparison also gets a permutation p-value estimated from iter random label
// permutations.
func Analyze(name string, subjects []*Subject, event int, censorDate time.Time, horizons []float64, iter int) *Analysis {
	fmt.Println("Analyzing ", EventTypeName(event), " survival for ", len(subjects), " subjects...")
	obs, report := BuildObservations(subjects, event, censorDate)
	a := &Analysis{
		Event:      event,
		Name:       name,
		CensorDate: censorDate,
		Horizons:   horizons,
		Report:     report,
		Pooled:     FitKaplanMeier(obs),
	}
	a.PooledSummary = Summarize(obs, a.Pooled, horizons)
	// group by transplant year; subjects without a transplant date cannot be
	// assigned to a year and are dropped here (the build report already lists
	// them)
	known := ApplySubjectFilters([]SubjectFilter{KnownOriginFilter()}, subjects)
	groups := PartitionSubjects(known, YearKey)
	a.Years = SortedKeys(groups)
	a.Curves = make([]*SurvFunc, len(a.Years))
	a.Summaries = make([]*GroupSummary, len(a.Years))
	groupObs := make([][]Observation, len(a.Years))
	parallel.Range(0, len(a.Years), 0, func(low, high int) {
		for i := low; i < high; i++ {
			gobs, _ := BuildObservations(groups[a.Years[i]], event, censorDate)
			groupObs[i] = gobs
			a.Curves[i] = FitKaplanMeier(gobs)
			a.Summaries[i] = Summarize(gobs, a.Curves[i], horizons)
		}
	})
	// the group tests only consider years that contributed observations
	testYears := []int{}
	testObs := [][]Observation{}
	for i, year := range a.Years {
		if len(groupObs[i]) > 0 {
			testYears = append(testYears, year)
			testObs = append(testObs, groupObs[i])
		}
	}
	if len(testObs) >= 2 {
		a.Global, a.GlobalErr = LogRankK(testObs)
	} else {
		a.GlobalErr = fmt.Errorf("%d transplant years with observations: %w", len(testObs), ErrInsufficientData)
	}
	a.Pairwise = PairwiseLogRank(testYears, testObs, iter)
	return a
}

// SortedKeys returns the keys of a subject grouping in ascending order.
func SortedKeys(groups map[int][]*Subject) []int {
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
