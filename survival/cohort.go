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
	"time"
)

// Building observation sets and cohorts from raw subject records.

// BuildReport summarizes the construction of an observation set from a list
// of subjects.
type BuildReport struct {
	Total    int                   //subjects considered
	Used     int                   //subjects that yielded an observation
	Events   int                   //observations with the event recorded
	Censored int                   //observations censored at the reference date
	Excluded []*InvalidRecordError //records that could not yield a valid observation
}

// BuildObservations derives one right-censored time-to-event observation per
// usable subject for the given event type. A subject contributes the number
// of whole days between the transplant date and the event date when the event
// was recorded, or between the transplant date and the censoring reference
// date otherwise. Subjects without a transplant date or with a negative
// derived duration are excluded and listed in the returned report.
func BuildObservations(subjects []*Subject, event int, censorDate time.Time) ([]Observation, *BuildReport) {
	report := &BuildReport{Total: len(subjects)}
	obs := make([]Observation, 0, len(subjects))
	for _, s := range subjects {
		if s.TransplantDate.IsZero() {
			report.Excluded = append(report.Excluded,
				&InvalidRecordError{Row: s.Row, Reason: "missing transplant date"})
			continue
		}
		end := censorDate
		hasEvent := false
		if d := s.EventDate(event); d != nil {
			end = *d
			hasEvent = true
		}
		days := DaysBetween(s.TransplantDate, end)
		if days < 0 {
			report.Excluded = append(report.Excluded,
				&InvalidRecordError{Row: s.Row, Reason: fmt.Sprint("negative follow-up of ", days, " days")})
			continue
		}
		obs = append(obs, Observation{Days: days, Event: hasEvent})
		report.Used++
		if hasEvent {
			report.Events++
		} else {
			report.Censored++
		}
	}
	return obs, report
}

// DaysBetween returns the number of whole days from a to b, negative when b
// lies before a.
func DaysBetween(a, b time.Time) float64 {
	return math.Floor(b.Sub(a).Hours() / 24.0)
}

// GroupKey maps a subject onto the key of the group it belongs to.
type GroupKey func(s *Subject) int

// YearKey groups subjects by their transplant year.
func YearKey(s *Subject) int {
	return s.Year
}

// PartitionSubjects splits subjects into groups according to a grouping key.
// Keys without any subject do not occur in the result.
func PartitionSubjects(subjects []*Subject, key GroupKey) map[int][]*Subject {
	groups := map[int][]*Subject{}
	for _, s := range subjects {
		k := key(s)
		groups[k] = append(groups[k], s)
	}
	return groups
}

// MissingKeys reports which of the requested group keys have no subjects in a
// grouping, so that callers learn about groups omitted from the results.
func MissingKeys(groups map[int][]*Subject, requested []int) []int {
	missing := []int{}
	for _, k := range requested {
		if _, ok := groups[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
