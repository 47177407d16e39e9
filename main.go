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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"rtsa/app"
	"rtsa/survival"
	"runtime"
	"strconv"
	"strings"
	"time"
)

/*
Rtsa is a tool for renal transplant survival analysis.

Usage:
	rtsa registryFile outputPath [flags]

Example:
	rtsa registry.csv ./graft-survival/ --name graft --censorDate 2023-06-30 --events death,graftLoss
	--horizons 365,1095,1825 --iter 1000 --filters knownOrigin --fromYear 2000 --toYear 2020

The flags are:

--name string
	Sets the name of the experiment. This name is used to generate names for output files.
--censorDate date
	Sets the reference date at which subjects without an observed event are censored, as an ISO date e.g. 2023-06-30.
	When this flag is not passed, the current date is used. Subjects without a recorded event date are assumed alive
	and with a functioning graft up to this date.
--originCol string
	The name of the registry column that holds the transplant date.
--deathCol string
	The name of the registry column that holds the date of death.
--graftLossCol string
	The name of the registry column that holds the date of graft loss.
--events death | graftLoss
	A list of events of interest. A full analysis is run for each event in the list. For the event death, subjects
	without a recorded date of death are censored; for the event graftLoss, subjects without a recorded date of
	graft loss are censored.
--horizons list
	A list of horizons in days at which the survival probabilities are reported, e.g. 365,1095,1825 for survival at
	1, 3, and 5 years after transplantation.
--iter nr
	Sets the number of iterations used in the permutation tests that complement the pairwise log-rank tests. If iter
	is 400, the calculated p-values are within 0.05 of the true p-values. For iter = 10000, the calculated p-values
	are within 0.01 of the true p-values. The higher the number of iterations, the higher the runtime. Passing 0
	disables the permutation tests.
--filters id | knownOrigin | death | graftLoss
	A list of filters for selecting the subjects on which the analysis is run. id keeps all subjects, knownOrigin
	keeps the subjects with a transplant date, death and graftLoss keep the subjects with a recorded date for that
	event.
--fromYear nr
	Restricts the analysis to subjects transplanted in or after the given year.
--toYear nr
	Restricts the analysis to subjects transplanted in or before the given year.
--nrOfThreads nr
	The number of threads rtsa uses.
*/

const (
	programVersion = 0.1
	programName    = "rtsa"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

const rtsaHelp = "\nrtsa parameters:\n" +
	"rtsa registryFile outputPath \n" +
	"[--name string]\n" +
	"[--censorDate date]\n" +
	"[--originCol string]\n" +
	"[--deathCol string]\n" +
	"[--graftLossCol string]\n" +
	"[--events death | graftLoss]\n" +
	"[--horizons list]\n" +
	"[--iter nr]\n" +
	"[--filters id | knownOrigin | death | graftLoss]\n" +
	"[--fromYear nr]\n" +
	"[--toYear nr]\n" +
	"[--nrOfThreads nr]\n"

func parseFlags(flags flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprint(os.Stderr, err)
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprint(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func getFileName(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

func getSubjectFilter(s string) survival.SubjectFilter {
	switch s {
	case "id":
		return survival.IdentityFilter()
	case "knownOrigin":
		return survival.KnownOriginFilter()
	case "death":
		return survival.EventRecordedFilter(survival.PatientDeath)
	case "graftLoss":
		return survival.EventRecordedFilter(survival.GraftLoss)
	default:
		return survival.IdentityFilter()
	}
}

func getSubjectFilters(f string, fromYear, toYear int) []survival.SubjectFilter {
	fs := strings.Split(f, ",")
	result := []survival.SubjectFilter{}
	for _, f := range fs {
		result = append(result, getSubjectFilter(f))
	}
	if fromYear != 0 || toYear != 0 {
		result = append(result, survival.YearRangeFilter(fromYear, toYear))
	}
	return result
}

func getEvents(s string) []int {
	events := []int{}
	for _, e := range strings.Split(s, ",") {
		switch e {
		case "death":
			events = append(events, survival.PatientDeath)
		case "graftLoss":
			events = append(events, survival.GraftLoss)
		}
	}
	return events
}

func getHorizons(s string) []float64 {
	if s == "" {
		return nil
	}
	horizons := []float64{}
	for _, h := range strings.Split(s, ",") {
		hf, err := strconv.ParseFloat(h, 64)
		if err != nil {
			panic(err)
		}
		horizons = append(horizons, hf)
	}
	return horizons
}

func main() {
	var (
		// required parameters
		registryFile string //The file with the registry export of transplanted patients.
		outputPath   string //The path where output files are written.
		// optional flags
		name         string
		censorDate   string
		originCol    string
		deathCol     string
		graftLossCol string
		events       string
		horizons     string
		iter         int
		filters      string
		fromYear     int
		toYear       int
		nrOfThreads  int
	)
	defaultColumns := app.DefaultRegistryColumns()
	var flags flag.FlagSet
	// options for the rtsa command
	flags.StringVar(&name, "name", "exp1", "The name of the run. This is used to generate the "+
		"names of the output files.")
	flags.StringVar(&censorDate, "censorDate", "", "The reference date at which subjects without "+
		"an observed event are censored. The current date is used when no date is passed.")
	flags.StringVar(&originCol, "originCol", defaultColumns.Origin, "The registry column with the "+
		"transplant date.")
	flags.StringVar(&deathCol, "deathCol", defaultColumns.Death, "The registry column with the "+
		"date of death.")
	flags.StringVar(&graftLossCol, "graftLossCol", defaultColumns.GraftLoss, "The registry column "+
		"with the date of graft loss.")
	flags.StringVar(&events, "events", "death,graftLoss", "A list of events of interest to "+
		"analyse.")
	flags.StringVar(&horizons, "horizons", "365,1095,1825", "A list of horizons in days at which "+
		"survival probabilities are reported.")
	flags.IntVar(&iter, "iter", 1000, "The number of sampling iterations for the permutation "+
		"tests.")
	flags.StringVar(&filters, "filters", "id", "A list of filters to restrict analysis on specific "+
		"subjects.")
	flags.IntVar(&fromYear, "fromYear", 0, "The first transplant year to include in the analysis.")
	flags.IntVar(&toYear, "toYear", 0, "The last transplant year to include in the analysis.")
	flags.IntVar(&nrOfThreads, "nrOfThreads", 0, "The number of threads rtsa uses.")
	// parse optional arguments
	parseFlags(flags, 3, rtsaHelp)
	// parse required arguments
	registryFile = getFileName(os.Args[1], rtsaHelp)
	outputPath, _ = filepath.Abs(getFileName(os.Args[2], rtsaHelp))
	outputPath = outputPath + string(filepath.Separator)
	fmt.Println("Output path: ", outputPath)
	// create output directory
	err := os.MkdirAll(filepath.Dir(outputPath), 0700)
	if err != nil {
		panic(err)
	}
	// parse the censor date, defaulting to the current date
	censor := time.Now().UTC()
	censor = time.Date(censor.Year(), censor.Month(), censor.Day(), 0, 0, 0, 0, time.UTC)
	if censorDate != "" {
		t, err := time.Parse("2006-01-02", censorDate)
		if err != nil {
			panic(err)
		}
		censor = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	horizonList := getHorizons(horizons)
	// build an output command line
	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " ", registryFile, " ", outputPath)
	fmt.Fprint(&command, " --name ", name)
	fmt.Fprint(&command, " --censorDate ", censor.Format("2006-01-02"))
	fmt.Fprint(&command, " --originCol ", originCol)
	fmt.Fprint(&command, " --deathCol ", deathCol)
	fmt.Fprint(&command, " --graftLossCol ", graftLossCol)
	fmt.Fprint(&command, " --events ", events)
	fmt.Fprint(&command, " --horizons ", horizons)
	fmt.Fprint(&command, " --iter ", iter)
	fmt.Fprint(&command, " --filters ", filters)
	if fromYear != 0 {
		fmt.Fprint(&command, " --fromYear ", fromYear)
	}
	if toYear != 0 {
		fmt.Fprint(&command, " --toYear ", toYear)
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nrOfThreads ", nrOfThreads)
	}
	// start execution
	log.Println(programMessage())
	log.Println("Executing command:\n", command.String())
	//1. Parse the registry input
	columns := app.RegistryColumns{Origin: originCol, Death: deathCol, GraftLoss: graftLossCol}
	data := app.ParseRegistryData(registryFile, columns, getSubjectFilters(filters, fromYear, toYear))
	//2. Run a full analysis per event of interest
	for _, event := range getEvents(events) {
		a := survival.Analyze(name, data.Subjects, event, censor, horizonList, iter)
		//3. Print an overview to standard output
		survival.PrintAnalysis(a)
		survival.PrintSurvFunc(a.Pooled, 20)
		//4. Plot the analysis to file
		survival.PrintSurvivalToFile(a, outputPath)
	}
}
