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

package survival_test

import (
	"errors"
	"os"
	"path/filepath"
	"rtsa/survival"
	"strings"
	"testing"
	"time"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(year int, month time.Month, d int) *time.Time {
	t := day(year, month, d)
	return &t
}

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		a, b time.Time
		want float64
	}{
		{day(2020, time.January, 1), day(2020, time.March, 1), 60},
		{day(2020, time.January, 1), day(2020, time.June, 1), 152},
		{day(2020, time.January, 1), day(2024, time.June, 1), 1613},
		{day(2020, time.January, 1), day(2020, time.January, 1), 0},
		{day(2020, time.March, 1), day(2020, time.January, 1), -60},
	}
	for _, c := range cases {
		if got := survival.DaysBetween(c.a, c.b); got != c.want {
			t.Errorf("expected %v days between %v and %v, got %v", c.want, c.a, c.b, got)
		}
	}
}

func TestBuildObservations(t *testing.T) {
	censor := day(2024, time.June, 1)
	subjects := []*survival.Subject{
		{Row: 2, TransplantDate: day(2020, time.January, 1), DeathDate: dayPtr(2020, time.March, 1), Year: 2020},
		{Row: 3, TransplantDate: day(2020, time.January, 1), Year: 2020},
		{Row: 4},
		{Row: 5, TransplantDate: day(2024, time.June, 2), Year: 2024},
		{Row: 6, TransplantDate: day(2020, time.January, 1), DeathDate: dayPtr(2024, time.July, 1), Year: 2020},
	}
	obs, report := survival.BuildObservations(subjects, survival.PatientDeath, censor)
	want := []survival.Observation{
		{Days: 60, Event: true},
		{Days: 1613, Event: false},
		{Days: 1643, Event: true},
	}
	if len(obs) != len(want) {
		t.Fatalf("expected %d observations, got %d", len(want), len(obs))
	}
	for i, o := range obs {
		if o != want[i] {
			t.Errorf("expected observation %v at index %d, got %v", want[i], i, o)
		}
	}
	if report.Total != 5 || report.Used != 3 || report.Events != 2 || report.Censored != 1 {
		t.Errorf("unexpected report counts: %+v", report)
	}
	if len(report.Excluded) != 2 {
		t.Fatalf("expected 2 excluded records, got %d", len(report.Excluded))
	}
	if report.Excluded[0].Row != 4 || report.Excluded[1].Row != 5 {
		t.Errorf("expected exclusions for rows 4 and 5, got rows %d and %d",
			report.Excluded[0].Row, report.Excluded[1].Row)
	}
	if msg := report.Excluded[0].Error(); msg != "invalid record at row 4: missing transplant date" {
		t.Errorf("unexpected exclusion message: %s", msg)
	}
	if report.Excluded[1].Reason != "negative follow-up of -1 days" {
		t.Errorf("unexpected exclusion reason: %s", report.Excluded[1].Reason)
	}
}

func TestPartitionSubjects(t *testing.T) {
	subjects := []*survival.Subject{
		{Row: 2, TransplantDate: day(2005, time.April, 1), Year: 2005},
		{Row: 3, TransplantDate: day(2005, time.October, 15), Year: 2005},
		{Row: 4, TransplantDate: day(2010, time.January, 1), Year: 2010},
	}
	groups := survival.PartitionSubjects(subjects, survival.YearKey)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[2005]) != 2 || len(groups[2010]) != 1 {
		t.Errorf("unexpected group sizes: %d and %d", len(groups[2005]), len(groups[2010]))
	}
	if groups[2005][0].Row != 2 || groups[2005][1].Row != 3 {
		t.Errorf("expected rows 2 and 3 in group 2005, got %d and %d",
			groups[2005][0].Row, groups[2005][1].Row)
	}
	keys := survival.SortedKeys(groups)
	if len(keys) != 2 || keys[0] != 2005 || keys[1] != 2010 {
		t.Errorf("expected sorted keys [2005 2010], got %v", keys)
	}
	missing := survival.MissingKeys(groups, []int{2005, 2007, 2010, 2012})
	if len(missing) != 2 || missing[0] != 2007 || missing[1] != 2012 {
		t.Errorf("expected missing keys [2007 2012], got %v", missing)
	}
}

func TestSubjectFilters(t *testing.T) {
	subjects := []*survival.Subject{
		{Row: 2, TransplantDate: day(2004, time.June, 1), DeathDate: dayPtr(2006, time.January, 1), Year: 2004},
		{Row: 3, TransplantDate: day(2007, time.February, 1), GraftLossDate: dayPtr(2008, time.March, 1), Year: 2007},
		{Row: 4, TransplantDate: day(2012, time.May, 1), Year: 2012},
		{Row: 5},
	}
	rows := func(subjects []*survival.Subject) []int {
		r := []int{}
		for _, s := range subjects {
			r = append(r, s.Row)
		}
		return r
	}
	kept := survival.ApplySubjectFilters([]survival.SubjectFilter{survival.IdentityFilter()}, subjects)
	if len(kept) != 4 {
		t.Errorf("expected the identity filter to keep all 4 subjects, got %d", len(kept))
	}
	kept = survival.ApplySubjectFilters([]survival.SubjectFilter{survival.KnownOriginFilter()}, subjects)
	if len(kept) != 3 || kept[2].Row != 4 {
		t.Errorf("expected the known origin filter to keep rows [2 3 4], got %v", rows(kept))
	}
	kept = survival.ApplySubjectFilters([]survival.SubjectFilter{survival.YearRangeFilter(2005, 0)}, subjects)
	if len(kept) != 2 || kept[0].Row != 3 || kept[1].Row != 4 {
		t.Errorf("expected the year range filter from 2005 to keep rows [3 4], got %v", rows(kept))
	}
	kept = survival.ApplySubjectFilters([]survival.SubjectFilter{survival.YearRangeFilter(0, 2007)}, subjects)
	if len(kept) != 2 || kept[0].Row != 2 || kept[1].Row != 3 {
		t.Errorf("expected the year range filter up to 2007 to keep rows [2 3], got %v", rows(kept))
	}
	kept = survival.ApplySubjectFilters([]survival.SubjectFilter{survival.EventRecordedFilter(survival.GraftLoss)}, subjects)
	if len(kept) != 1 || kept[0].Row != 3 {
		t.Errorf("expected the graft loss filter to keep row [3], got %v", rows(kept))
	}
	kept = survival.ApplySubjectFilters([]survival.SubjectFilter{
		survival.YearRangeFilter(2005, 2012),
		survival.EventRecordedFilter(survival.PatientDeath),
	}, subjects)
	if len(kept) != 0 {
		t.Errorf("expected the combined filters to keep no subjects, got %v", rows(kept))
	}
}

func TestAnalyze(t *testing.T) {
	subjects := []*survival.Subject{
		{Row: 2, TransplantDate: day(2005, time.January, 1), DeathDate: dayPtr(2005, time.January, 11), Year: 2005},
		{Row: 3, TransplantDate: day(2005, time.January, 1), DeathDate: dayPtr(2005, time.January, 21), Year: 2005},
		{Row: 4, TransplantDate: day(2005, time.January, 1), DeathDate: dayPtr(2005, time.January, 31), Year: 2005},
		{Row: 5, TransplantDate: day(2010, time.January, 1), Year: 2010},
		{Row: 6, TransplantDate: day(2010, time.January, 1), Year: 2010},
		{Row: 7, TransplantDate: day(2010, time.January, 1), Year: 2010},
		{Row: 8}, //missing transplant date
	}
	censor := day(2012, time.January, 1)
	a := survival.Analyze("exp", subjects, survival.PatientDeath, censor, []float64{365}, 200)
	if a.Report.Total != 7 || a.Report.Used != 6 || a.Report.Events != 3 || a.Report.Censored != 3 {
		t.Errorf("unexpected report counts: %+v", a.Report)
	}
	if len(a.Report.Excluded) != 1 {
		t.Fatalf("expected 1 excluded record, got %d", len(a.Report.Excluded))
	}
	if a.Report.Excluded[0].Row != 8 {
		t.Errorf("expected row 8 to be excluded, got row %d", a.Report.Excluded[0].Row)
	}
	if len(a.Years) != 2 || a.Years[0] != 2005 || a.Years[1] != 2010 {
		t.Fatalf("expected transplant years [2005 2010], got %v", a.Years)
	}
	if len(a.Curves) != 2 || len(a.Summaries) != 2 {
		t.Fatalf("expected a curve and a summary per year, got %d and %d", len(a.Curves), len(a.Summaries))
	}
	p := a.Pooled
	wantTimes := []float64{0, 10, 20, 30, 730}
	if len(p.Times) != len(wantTimes) {
		t.Fatalf("expected %d pooled curve steps, got %d", len(wantTimes), len(p.Times))
	}
	for i, w := range wantTimes {
		if p.Times[i] != w {
			t.Errorf("expected pooled curve time %v at index %d, got %v", w, i, p.Times[i])
		}
	}
	if p.NRisk[0] != 6 || p.NRisk[4] != 3 || p.NCensor[4] != 3 {
		t.Errorf("unexpected pooled at risk counts: %v and %v", p.NRisk, p.NCensor)
	}
	if !almostEqual(p.SurvProb[3], 0.5, 1e-12) || !almostEqual(p.SurvProb[4], 0.5, 1e-12) {
		t.Errorf("expected pooled survival 0.5 from 30 days on, got %v", p.SurvProb)
	}
	if a.PooledSummary.Subjects != 6 || a.PooledSummary.Events != 3 || a.PooledSummary.Censored != 3 {
		t.Errorf("unexpected pooled summary counts: %+v", a.PooledSummary)
	}
	if a.PooledSummary.TotalFollowUp != 2250 {
		t.Errorf("expected 2250 days of pooled follow-up, got %v", a.PooledSummary.TotalFollowUp)
	}
	if !a.PooledSummary.MedianReached || a.PooledSummary.MedianTime != 30 {
		t.Errorf("expected a pooled median of 30 days, got %v and %v",
			a.PooledSummary.MedianTime, a.PooledSummary.MedianReached)
	}
	if !a.Summaries[0].MedianReached || a.Summaries[0].MedianTime != 20 {
		t.Errorf("expected a 2005 median of 20 days, got %v and %v",
			a.Summaries[0].MedianTime, a.Summaries[0].MedianReached)
	}
	if a.Summaries[1].MedianReached {
		t.Error("expected no median for the 2010 group")
	}
	if a.Summaries[0].HorizonProbs[0] != 0 {
		t.Errorf("expected 1-year survival 0 for the 2005 group, got %v", a.Summaries[0].HorizonProbs[0])
	}
	if a.Summaries[1].HorizonProbs[0] != 1 {
		t.Errorf("expected 1-year survival 1 for the 2010 group, got %v", a.Summaries[1].HorizonProbs[0])
	}
	if a.GlobalErr != nil {
		t.Fatalf("unexpected global test error: %v", a.GlobalErr)
	}
	if a.Global.DF != 1 {
		t.Errorf("expected 1 degree of freedom, got %d", a.Global.DF)
	}
	if !almostEqual(a.Global.Statistic, 5.051660516605166, 1e-6) {
		t.Errorf("expected a global statistic of 5.0517, got %v", a.Global.Statistic)
	}
	if a.Global.PValue < 0.01 || a.Global.PValue > 0.05 {
		t.Errorf("expected a global p-value near 0.025, got %v", a.Global.PValue)
	}
	if len(a.Pairwise) != 1 {
		t.Fatalf("expected 1 pairwise comparison, got %d", len(a.Pairwise))
	}
	pw := a.Pairwise[0]
	if pw.Year1 != 2005 || pw.Year2 != 2010 || pw.Err != nil {
		t.Errorf("unexpected pairwise comparison: %v vs %v, error %v", pw.Year1, pw.Year2, pw.Err)
	}
	if pw.PermutationPValue <= 0 || pw.PermutationPValue > 1 {
		t.Errorf("expected a permutation p-value in (0,1], got %v", pw.PermutationPValue)
	}
	survival.PrintAnalysis(a)
	dir := t.TempDir()
	survival.PrintSurvivalToFile(a, dir)
	for _, name := range []string{
		"exp-death-survival.csv",
		"exp-death-survival-2005.csv",
		"exp-death-survival-2010.csv",
		"exp-death-summary.csv",
		"exp-death-logrank.csv",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected output file %s: %v", name, err)
		}
	}
}

func TestAnalyzeSingleYear(t *testing.T) {
	subjects := []*survival.Subject{
		{Row: 2, TransplantDate: day(2005, time.January, 1), DeathDate: dayPtr(2005, time.January, 11), Year: 2005},
		{Row: 3, TransplantDate: day(2005, time.January, 1), Year: 2005},
	}
	a := survival.Analyze("solo", subjects, survival.PatientDeath, day(2006, time.January, 1), nil, 0)
	if a.Global != nil || a.GlobalErr == nil {
		t.Fatal("expected the global test to be skipped for a single transplant year")
	}
	if !errors.Is(a.GlobalErr, survival.ErrInsufficientData) {
		t.Errorf("expected insufficient data, got %v", a.GlobalErr)
	}
	if len(a.Pairwise) != 0 {
		t.Errorf("expected no pairwise comparisons, got %d", len(a.Pairwise))
	}
}

func TestAnalyzeNoUsableSubjects(t *testing.T) {
	// records that yield no valid observation are reported, they never abort a run
	subjects := []*survival.Subject{{Row: 2}, {Row: 3}}
	a := survival.Analyze("none", subjects, survival.PatientDeath, day(2006, time.January, 1), []float64{365}, 100)
	if a.Report.Total != 2 || a.Report.Used != 0 {
		t.Errorf("unexpected report counts: %+v", a.Report)
	}
	if len(a.Report.Excluded) != 2 {
		t.Fatalf("expected 2 excluded records, got %d", len(a.Report.Excluded))
	}
	if a.Report.Excluded[0].Row != 2 || a.Report.Excluded[1].Row != 3 {
		t.Errorf("expected exclusions for rows 2 and 3, got rows %d and %d",
			a.Report.Excluded[0].Row, a.Report.Excluded[1].Row)
	}
	if len(a.Years) != 0 {
		t.Errorf("expected no transplant years, got %v", a.Years)
	}
	if len(a.Pooled.Times) != 1 || a.Pooled.SurvProb[0] != 1.0 || a.Pooled.NRisk[0] != 0 {
		t.Errorf("expected an empty pooled curve, got %d steps with %d at risk",
			len(a.Pooled.Times), a.Pooled.NRisk[0])
	}
	if a.PooledSummary.Subjects != 0 {
		t.Errorf("expected an empty pooled summary, got %+v", a.PooledSummary)
	}
	if a.Global != nil || !errors.Is(a.GlobalErr, survival.ErrInsufficientData) {
		t.Errorf("expected insufficient data for the global test, got %v", a.GlobalErr)
	}
	if len(a.Pairwise) != 0 {
		t.Errorf("expected no pairwise comparisons, got %d", len(a.Pairwise))
	}
	survival.PrintAnalysis(a)
	// an analysis over no subjects at all behaves the same
	empty := survival.Analyze("none", nil, survival.PatientDeath, day(2006, time.January, 1), nil, 0)
	if empty.Report.Total != 0 || len(empty.Report.Excluded) != 0 || len(empty.Years) != 0 {
		t.Errorf("unexpected analysis over no subjects: %+v", empty.Report)
	}
	if !errors.Is(empty.GlobalErr, survival.ErrInsufficientData) {
		t.Errorf("expected insufficient data for the global test, got %v", empty.GlobalErr)
	}
}

func TestPrintSummaryHorizonColumns(t *testing.T) {
	subjects := []*survival.Subject{
		{Row: 2, TransplantDate: day(2005, time.January, 1), DeathDate: dayPtr(2005, time.January, 11), Year: 2005},
		{Row: 3, TransplantDate: day(2005, time.January, 1), Year: 2005},
	}
	a := survival.Analyze("frac", subjects, survival.PatientDeath, day(2006, time.January, 1),
		[]float64{365.25, 730.5}, 0)
	dir := t.TempDir()
	survival.PrintSurvivalToFile(a, dir)
	content, err := os.ReadFile(filepath.Join(dir, "frac-death-summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	// fractional horizons keep their own columns
	header := strings.SplitN(string(content), "\n", 2)[0]
	want := "label,subjects,events,censored,total_followup,mean_followup,stddev_followup,median_time," +
		"surv_365.25,ci_low_365.25,ci_high_365.25,surv_730.5,ci_low_730.5,ci_high_730.5"
	if header != want {
		t.Errorf("expected summary header %s, got %s", want, header)
	}
}
