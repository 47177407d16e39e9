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
	"os"
	"path/filepath"
	"rtsa/utils"
	"strconv"
)

// Plotting of survival curves and test results

// eventFileTag returns the tag used in output file names for an event type.
func eventFileTag(event int) string {
	if event == PatientDeath {
		return "death"
	}
	return "graft-loss"
}

// formatFloat renders a statistic for output. Values that are not finite are
// rendered as NA.
func formatFloat(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "NA"
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// printSurvFuncToCSVFile prints the step series of a survival function to a CSV file. The header is:
// time,n_risk,n_event,n_censor,survival,variance,ci_low,ci_high,ci_defined. Each row represents one tabulated time
// with the counts at that time, the survival estimate, its Greenwood variance, and the 95% confidence bounds.
func printSurvFuncToCSVFile(sf *SurvFunc, name string) {
	file, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	fmt.Fprintf(file, "time,n_risk,n_event,n_censor,survival,variance,ci_low,ci_high,ci_defined\n")
	for i := range sf.Times {
		fmt.Fprintf(file, "%s,%d,%d,%d,%s,%s,%s,%s,%t\n",
			strconv.FormatFloat(sf.Times[i], 'f', -1, 64),
			sf.NRisk[i], sf.NEvent[i], sf.NCensor[i],
			formatFloat(sf.SurvProb[i]), formatFloat(sf.SurvVar[i]),
			formatFloat(sf.CILower[i]), formatFloat(sf.CIUpper[i]),
			sf.CIDefined[i])
	}
}

// printSummariesToCSVFile prints the summary statistics of an analysis to a CSV file. The first row is for the pooled
// cohort with label "all", followed by one row per transplant year. The fixed columns are:
// label,subjects,events,censored,total_followup,mean_followup,stddev_followup,median_time. They are followed by three
// columns surv_h,ci_low_h,ci_high_h for each requested horizon of h days.
func printSummariesToCSVFile(a *Analysis, name string) {
	file, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	header := "label,subjects,events,censored,total_followup,mean_followup,stddev_followup,median_time"
	for _, h := range a.Horizons {
		hs := strconv.FormatFloat(h, 'f', -1, 64)
		header = fmt.Sprintf("%s,surv_%s,ci_low_%s,ci_high_%s", header, hs, hs, hs)
	}
	fmt.Fprintf(file, "%s\n", header)
	printSummaryRow(file, "all", a.PooledSummary)
	for i, year := range a.Years {
		printSummaryRow(file, strconv.Itoa(year), a.Summaries[i])
	}
}

func printSummaryRow(file *os.File, label string, s *GroupSummary) {
	median := "NA"
	if s.MedianReached {
		median = strconv.FormatFloat(s.MedianTime, 'f', -1, 64)
	}
	line := fmt.Sprintf("%s,%d,%d,%d,%s,%s,%s,%s", label, s.Subjects, s.Events, s.Censored,
		formatFloat(s.TotalFollowUp), formatFloat(s.MeanFollowUp), formatFloat(s.StdDevFollowUp), median)
	for i := range s.Horizons {
		line = fmt.Sprintf("%s,%s,%s,%s", line,
			formatFloat(s.HorizonProbs[i]), formatFloat(s.HorizonLows[i]), formatFloat(s.HorizonHighs[i]))
	}
	fmt.Fprintf(file, "%s\n", line)
}

// printLogRankToCSVFile prints the log-rank test results of an analysis to a CSV file. The header is:
// comparison,statistic,df,p_value,permutation_p. The first row labelled "global" holds the k-sample test across all
// transplant years, followed by one row per pairwise comparison. Tests that could not be computed have NA entries.
func printLogRankToCSVFile(a *Analysis, name string) {
	file, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	fmt.Fprintf(file, "comparison,statistic,df,p_value,permutation_p\n")
	if a.GlobalErr != nil {
		fmt.Fprintf(file, "global,NA,NA,NA,NA\n")
	} else {
		fmt.Fprintf(file, "global,%s,%d,%s,NA\n",
			formatFloat(a.Global.Statistic), a.Global.DF, formatFloat(a.Global.PValue))
	}
	for _, p := range a.Pairwise {
		comparison := fmt.Sprintf("%d-vs-%d", p.Year1, p.Year2)
		if p.Err != nil {
			fmt.Fprintf(file, "%s,NA,NA,NA,NA\n", comparison)
			continue
		}
		perm := "NA"
		if p.PermutationPValue >= 0 {
			perm = formatFloat(p.PermutationPValue)
		}
		fmt.Fprintf(file, "%s,%s,%d,%s,%s\n", comparison,
			formatFloat(p.Result.Statistic), p.Result.DF, formatFloat(p.Result.PValue), perm)
	}
}

// PrintSurvivalToFile outputs an analysis to CSV files in a given directory:
// - A CSV file with the pooled Kaplan-Meier survival function
// - A CSV file per transplant year with the Kaplan-Meier survival function of that year
// - A CSV file with summary statistics for the pooled cohort and for each transplant year
// - A CSV file with the log-rank test results across and between transplant years
func PrintSurvivalToFile(a *Analysis, path string) {
	tag := eventFileTag(a.Event)
	curveFileName := filepath.Join(path, fmt.Sprintf("%s-%s-survival.csv", a.Name, tag))
	printSurvFuncToCSVFile(a.Pooled, curveFileName)
	for i, year := range a.Years {
		yearFileName := filepath.Join(path, fmt.Sprintf("%s-%s-survival-%d.csv", a.Name, tag, year))
		printSurvFuncToCSVFile(a.Curves[i], yearFileName)
	}
	summaryFileName := filepath.Join(path, fmt.Sprintf("%s-%s-summary.csv", a.Name, tag))
	printSummariesToCSVFile(a, summaryFileName)
	logRankFileName := filepath.Join(path, fmt.Sprintf("%s-%s-logrank.csv", a.Name, tag))
	printLogRankToCSVFile(a, logRankFileName)
}

// PrintSurvFunc prints the first max steps of a survival function to standard output.
func PrintSurvFunc(sf *SurvFunc, max int) {
	n := utils.MinInt(max, len(sf.Times))
	fmt.Println("time\tn_risk\tn_event\tn_censor\tsurvival\tci_low\tci_high")
	for i := 0; i < n; i++ {
		fmt.Printf("%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			strconv.FormatFloat(sf.Times[i], 'f', -1, 64),
			sf.NRisk[i], sf.NEvent[i], sf.NCensor[i],
			formatFloat(sf.SurvProb[i]), formatFloat(sf.CILower[i]), formatFloat(sf.CIUpper[i]))
	}
	if n < len(sf.Times) {
		fmt.Println("... ", len(sf.Times)-n, " more steps")
	}
}

// PrintAnalysis prints an overview of an analysis to standard output.
func PrintAnalysis(a *Analysis) {
	fmt.Println("Survival analysis ", a.Name, " for event: ", EventTypeName(a.Event))
	fmt.Println("Censor date: ", a.CensorDate.Format("2006-01-02"))
	fmt.Println("Subjects: ", a.Report.Total, " used: ", a.Report.Used, " events: ", a.Report.Events,
		" censored: ", a.Report.Censored, " excluded: ", len(a.Report.Excluded))
	nExcluded := utils.MinInt(len(a.Report.Excluded), 10)
	for _, e := range a.Report.Excluded[:nExcluded] {
		fmt.Println("Excluded: ", e.Error())
	}
	if len(a.Report.Excluded) > nExcluded {
		fmt.Println("... ", len(a.Report.Excluded)-nExcluded, " more excluded records")
	}
	if a.PooledSummary.MedianReached {
		fmt.Println("Median survival time: ", a.PooledSummary.MedianTime, " days")
	} else {
		fmt.Println("Median survival time not reached")
	}
	for i, year := range a.Years {
		s := a.Summaries[i]
		fmt.Println("Year ", year, ": ", s.Subjects, " subjects, ", s.Events, " events, ",
			s.Censored, " censored")
	}
	if a.GlobalErr != nil {
		fmt.Println("Log-rank test across transplant years: ", a.GlobalErr)
	} else {
		fmt.Println("Log-rank test across transplant years: statistic ", a.Global.Statistic,
			" df ", a.Global.DF, " p ", a.Global.PValue)
	}
	for _, p := range a.Pairwise {
		if p.Err != nil {
			fmt.Println("Log-rank ", p.Year1, " vs ", p.Year2, ": ", p.Err)
			continue
		}
		if p.PermutationPValue >= 0 {
			fmt.Println("Log-rank ", p.Year1, " vs ", p.Year2, ": statistic ", p.Result.Statistic,
				" p ", p.Result.PValue, " permutation p ", p.PermutationPValue)
		} else {
			fmt.Println("Log-rank ", p.Year1, " vs ", p.Year2, ": statistic ", p.Result.Statistic,
				" p ", p.Result.PValue)
		}
	}
}
