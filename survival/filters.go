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

// SubjectFilter prescribes a function type for implementing filters on registry subjects, to be able to restrict an
// analysis to specific cohorts. E.g. subjects transplanted in a given period, subjects with a recorded death, etc.
type SubjectFilter func(s *Subject) bool

func ApplySubjectFilters(filters []SubjectFilter, subjects []*Subject) []*Subject {
	newSubjects := []*Subject{}
	for _, s := range subjects {
		res := true
		for _, filter := range filters {
			res = filter(s) && res
			if !res {
				break
			}
		}
		if res {
			newSubjects = append(newSubjects, s)
		}
	}
	return newSubjects
}

// IdentityFilter keeps all subjects.
func IdentityFilter() SubjectFilter {
	return func(s *Subject) bool {
		return true
	}
}

// KnownOriginFilter removes all subjects without a transplant date.
func KnownOriginFilter() SubjectFilter {
	return func(s *Subject) bool {
		return !s.TransplantDate.IsZero()
	}
}

// YearRangeFilter removes all subjects transplanted outside the given range of years. A zero bound leaves that side
// of the range open.
func YearRangeFilter(from, to int) SubjectFilter {
	return func(s *Subject) bool {
		if s.TransplantDate.IsZero() {
			return false
		}
		if from != 0 && s.Year < from {
			return false
		}
		if to != 0 && s.Year > to {
			return false
		}
		return true
	}
}

// EventRecordedFilter removes all subjects without a recorded date for the given event type.
func EventRecordedFilter(event int) SubjectFilter {
	return func(s *Subject) bool {
		return s.EventDate(event) != nil
	}
}
