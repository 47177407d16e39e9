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

package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"rtsa/survival"
	"rtsa/utils"
	"strings"
	"time"
)

//Package app implements the input parsing of the rtsa renal transplant survival analysis tool.
//The rtsa program has 1 data input:
//A registry export in CSV format with one row per transplanted patient. Next to many administrative columns, each
//row holds a transplant date, an optional date of death, and an optional date of graft loss.

//The registry exports come from spreadsheet software. The first header cell may carry a UTF-8 byte order mark, rows
//can have a variable number of fields, and the date cells mix ISO dates, ISO timestamps, and day-first dates.

// RegistryColumns names the columns of the registry file that hold the transplant, death, and graft loss dates.
type RegistryColumns struct {
	Origin    string //column with the transplant date
	Death     string //column with the date of death
	GraftLoss string //column with the date of graft loss
}

// DefaultRegistryColumns returns the column names used by the renal transplant registry exports.
func DefaultRegistryColumns() RegistryColumns {
	return RegistryColumns{Origin: "data_tx", Death: "data_obito", GraftLoss: "data_pe"}
}

// RegistryData holds the parsed registry subjects and the parse counters.
type RegistryData struct {
	Subjects      []*survival.Subject
	Rows          int //data rows in the file, the header not included
	MissingOrigin int //rows without a parsable transplant date
	Deaths        int //rows with a parsable date of death
	GraftLosses   int //rows with a parsable date of graft loss
	BadDates      int //non-empty date cells that match none of the known layouts
	MinYear       int //earliest transplant year
	MaxYear       int //latest transplant year
}

// registryDateLayouts lists the date formats observed in the registry exports.
var registryDateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}

// parseRegistryDate parses a date cell of the registry file. An empty cell yields nil. A non-empty cell that matches
// none of the known layouts is counted in data.BadDates and yields nil as well. Parsed dates are truncated to UTC
// midnight so that follow-up is counted in whole days.
func parseRegistryDate(cell string, data *RegistryData) *time.Time {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	for _, layout := range registryDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	data.BadDates++
	return nil
}

// stripBOM removes the byte order mark that spreadsheet exports prepend to the first header cell.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

// cell returns the field at index i of a record, or the empty string for rows with fewer fields.
func cell(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

// parseRegistryFile parses the registry CSV file into subjects. The columns holding the three dates are located by a
// case-insensitive match in the header row. Rows without a parsable transplant date are kept, with the zero time as
// transplant date, so that the cohort builder can report them as excluded.
func parseRegistryFile(file string, columns RegistryColumns) *RegistryData {
	fmt.Println("Parsing registry data from CSV file: ", file)
	csvFile, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := csvFile.Close(); err != nil {
			panic(err)
		}
	}()
	data := &RegistryData{MinYear: 2100, MaxYear: 1850}
	//parse file
	reader := csv.NewReader(csvFile)
	reader.FieldsPerRecord = -1 //registry exports have rows with a variable number of fields
	header, err := reader.Read()
	if err != nil {
		panic(err)
	}
	originIdx, deathIdx, graftLossIdx := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(stripBOM(name))) {
		case strings.ToLower(columns.Origin):
			originIdx = i
		case strings.ToLower(columns.Death):
			deathIdx = i
		case strings.ToLower(columns.GraftLoss):
			graftLossIdx = i
		}
	}
	if originIdx < 0 || deathIdx < 0 || graftLossIdx < 0 {
		panic(fmt.Sprint("registry file ", file, " misses one of the columns ",
			columns.Origin, ", ", columns.Death, ", ", columns.GraftLoss))
	}
	row := 1 //the header is row 1, the first data row is row 2
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}
		row++
		data.Rows++
		subject := &survival.Subject{Row: row}
		if d := parseRegistryDate(cell(record, originIdx), data); d != nil {
			subject.TransplantDate = *d
			subject.Year = d.Year()
			data.MinYear = utils.MinInt(d.Year(), data.MinYear)
			data.MaxYear = utils.MaxInt(d.Year(), data.MaxYear)
		} else {
			data.MissingOrigin++
		}
		if d := parseRegistryDate(cell(record, deathIdx), data); d != nil {
			subject.DeathDate = d
			data.Deaths++
		}
		if d := parseRegistryDate(cell(record, graftLossIdx), data); d != nil {
			subject.GraftLossDate = d
			data.GraftLosses++
		}
		data.Subjects = append(data.Subjects, subject)
	}
	fmt.Println("Parsed registry data.")
	fmt.Print("Parsed ", data.Rows, " subjects of which ", data.MissingOrigin, " without transplant date, ")
	fmt.Println(data.Deaths, " with a known date of death, and ", data.GraftLosses,
		" with a known date of graft loss.")
	fmt.Println("Earliest transplant year:", data.MinYear)
	fmt.Println("Latest transplant year:", data.MaxYear)
	if data.BadDates > 0 {
		fmt.Println("Could not parse ", data.BadDates, " date cells.")
	}
	return data
}

// ParseRegistryData parses the registry CSV file and applies the given filters to the parsed subjects.
func ParseRegistryData(file string, columns RegistryColumns, filters []survival.SubjectFilter) *RegistryData {
	data := parseRegistryFile(file, columns)
	filtered := survival.ApplySubjectFilters(filters, data.Subjects)
	fmt.Println("Filtered down from: ", len(data.Subjects), " subjects down to: ", len(filtered), " subjects.")
	data.Subjects = filtered
	return data
}
