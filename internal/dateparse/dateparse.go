// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package dateparse extracts an optional (date_from, date_to) range from a
// free-form query string (spec §4.10, §9). It is a straight-line cascade of
// explicit pattern attempts, not one large regex, because the DD/MM vs
// MM/DD disambiguation and the "slice into thirds" modifier logic are
// easiest to state, and test, as separate named steps (spec §9 REDESIGN
// FLAGS: "reproduce it as explicit alternatives").
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Range is an inclusive [From, To] day-level span.
type Range struct {
	From, To time.Time
}

// Result is the outcome of a parse: the matched range (if any) and the
// query with the recognized phrase stripped.
type Result struct {
	Range       *Range
	CleanQuery  string
	MatchedText string
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"sept": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Parse runs the cascade against query and returns the stripped query plus
// any extracted range. now is the reference instant for relative spans
// ("today", "last week", ...), injected so callers (and tests) can pin it.
func Parse(query string, now time.Time) Result {
	lower := strings.ToLower(query)

	if r, matched, ok := tryModifiedSpan(lower, now); ok {
		return finish(query, matched, r)
	}
	if r, matched, ok := tryBetween(lower, now); ok {
		return finish(query, matched, r)
	}
	if r, matched, ok := tryBoundedPrefix(lower, now); ok {
		return finish(query, matched, r)
	}
	if r, matched, ok := tryCountedSpan(lower, now); ok {
		return finish(query, matched, r)
	}
	if r, matched, ok := tryRelativeSpan(lower, now); ok {
		return finish(query, matched, r)
	}
	if r, matched, ok := tryLiteralDate(lower); ok {
		return finish(query, matched, r)
	}
	return Result{CleanQuery: strings.TrimSpace(query)}
}

func finish(original, matched string, r Range) Result {
	clean := stripCaseInsensitive(original, matched)
	return Result{Range: &r, CleanQuery: strings.TrimSpace(clean), MatchedText: matched}
}

func stripCaseInsensitive(s, phrase string) string {
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(phrase))
	return re.ReplaceAllString(s, "")
}

func dayBounds(d time.Time) (time.Time, time.Time) {
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	to := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
	return from, to
}

func spanBounds(from, to time.Time) Range {
	f, _ := dayBounds(from)
	_, t := dayBounds(to)
	return Range{From: f, To: t}
}

// --- literal dates -----------------------------------------------------

var reISODate = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
var reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
var reYearOnly = regexp.MustCompile(`\b(19|20)\d{2}\b`)
var reTextualMonth = regexp.MustCompile(`\b(?:(\d{1,2})\s+)?(` + monthAlternation() + `)(?:\s+(\d{1,2}))?(?:,?\s+(\d{4}))?\b`)

func monthAlternation() string {
	names := make([]string, 0, len(months))
	for name := range months {
		names = append(names, name)
	}
	// Longest-first so "september" matches before "sep" in a single alternation.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return strings.Join(names, "|")
}

func tryLiteralDate(lower string) (Range, string, bool) {
	if m := reISODate.FindStringSubmatch(lower); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
		return spanBounds(t, t), m[0], true
	}

	// DD/MM/YYYY vs MM/DD/YYYY: prefer DD/MM when the first field exceeds 12
	// (spec §9 REDESIGN FLAGS, preserved verbatim).
	if m := reSlashDate.FindStringSubmatch(lower); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		var day, month int
		if a > 12 {
			day, month = a, b
		} else {
			month, day = a, b
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			t := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			return spanBounds(t, t), m[0], true
		}
	}

	if m := reTextualMonth.FindStringSubmatch(lower); m != nil {
		mon := months[m[2]]
		day := 1
		if m[1] != "" {
			day, _ = strconv.Atoi(m[1])
		} else if m[3] != "" {
			day, _ = strconv.Atoi(m[3])
		}
		year := time.Now().Year()
		if m[4] != "" {
			year, _ = strconv.Atoi(m[4])
		}
		if m[1] != "" || m[3] != "" {
			t := time.Date(year, mon, day, 0, 0, 0, 0, time.UTC)
			return spanBounds(t, t), m[0], true
		}
		from := time.Date(year, mon, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, -1)
		return spanBounds(from, to), m[0], true
	}

	if m := reYearOnly.FindString(lower); m != "" {
		y, _ := strconv.Atoi(m)
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
		return spanBounds(from, to), m, true
	}

	return Range{}, "", false
}

// --- ranges: "between A and B", "from A to B" ---------------------------

type rangeKeyword struct{ prefix, mid string }

var rangeKeywords = []rangeKeyword{{"between ", " and "}, {"from ", " to "}}

func tryBetween(lower string, now time.Time) (Range, string, bool) {
	for _, kw := range rangeKeywords {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(kw.prefix))
		loc := re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		rest := lower[loc[1]:]
		midRe := regexp.MustCompile(regexp.QuoteMeta(kw.mid))
		midLoc := midRe.FindStringIndex(rest)
		if midLoc == nil {
			continue
		}
		aStr := rest[:midLoc[0]]
		bStr := rest[midLoc[1]:]

		aRange, _, okA := tryLiteralDate(aStr)
		bRange, bMatch, okB := tryLiteralDate(bStr)
		if !okA || !okB {
			continue
		}
		matched := lower[loc[0]:loc[1]] + aStr + kw.mid + bMatch
		return Range{From: aRange.From, To: bRange.To}, matched, true
	}
	return Range{}, "", false
}

// --- bounded prefixes: "after/since/before/until/till/up to/in/on/during/from X"

var boundedPrefixes = []string{"after", "since", "before", "until", "till", "up to", "during", "from", "in", "on"}
var farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
var farPast = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)

func tryBoundedPrefix(lower string, now time.Time) (Range, string, bool) {
	for _, prefix := range boundedPrefixes {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(prefix) + `\s+`)
		loc := re.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		rest := lower[loc[1]:]

		r, innerMatch, ok := tryLiteralDate(rest)
		if !ok {
			r, innerMatch, ok = tryRelativeSpan(rest, now)
		}
		if !ok {
			continue
		}
		matched := lower[loc[0]:loc[1]] + innerMatch

		switch prefix {
		case "after", "since":
			return Range{From: r.To.Add(time.Second), To: farFuture}, matched, true
		case "before", "until", "till", "up to":
			return Range{From: farPast, To: r.From.Add(-time.Second)}, matched, true
		default: // in, on, during, from
			return r, matched, true
		}
	}
	return Range{}, "", false
}

// --- relative spans: today/yesterday/tomorrow/last|this|next {span} -----

func tryRelativeSpan(lower string, now time.Time) (Range, string, bool) {
	switch {
	case strings.Contains(lower, "today"):
		return spanBounds(now, now), "today", true
	case strings.Contains(lower, "yesterday"):
		y := now.AddDate(0, 0, -1)
		return spanBounds(y, y), "yesterday", true
	case strings.Contains(lower, "tomorrow"):
		tm := now.AddDate(0, 0, 1)
		return spanBounds(tm, tm), "tomorrow", true
	}

	re := regexp.MustCompile(`\b(last|this|next)\s+(week|month|year|quarter|financial year|` + weekdayAlternation() + `)\b`)
	m := re.FindStringSubmatch(lower)
	if m == nil {
		return Range{}, "", false
	}
	qualifier, unit := m[1], m[2]

	if wd, ok := weekdays[unit]; ok {
		return relativeWeekday(now, qualifier, wd), m[0], true
	}

	switch unit {
	case "week":
		return relativeWeek(now, qualifier), m[0], true
	case "month":
		return relativeMonth(now, qualifier), m[0], true
	case "year":
		return relativeYear(now, qualifier), m[0], true
	case "quarter":
		return relativeQuarter(now, qualifier), m[0], true
	case "financial year":
		return relativeFinancialYear(now, qualifier), m[0], true
	}
	return Range{}, "", false
}

func weekdayAlternation() string {
	return "sunday|monday|tuesday|wednesday|thursday|friday|saturday"
}

func relativeWeekday(now time.Time, qualifier string, wd time.Weekday) Range {
	delta := int(wd) - int(now.Weekday())
	switch qualifier {
	case "last":
		if delta >= 0 {
			delta -= 7
		}
	case "next":
		if delta <= 0 {
			delta += 7
		}
	case "this":
		// delta as-is: the occurrence within the current week.
	}
	t := now.AddDate(0, 0, delta)
	return spanBounds(t, t)
}

func startOfWeek(t time.Time) time.Time {
	offset := int(t.Weekday())
	return t.AddDate(0, 0, -offset)
}

func relativeWeek(now time.Time, qualifier string) Range {
	start := startOfWeek(now)
	switch qualifier {
	case "last":
		start = start.AddDate(0, 0, -7)
	case "next":
		start = start.AddDate(0, 0, 7)
	}
	end := start.AddDate(0, 0, 6)
	return spanBounds(start, end)
}

func relativeMonth(now time.Time, qualifier string) Range {
	y, m := now.Year(), now.Month()
	switch qualifier {
	case "last":
		m--
		if m < 1 {
			m = 12
			y--
		}
	case "next":
		m++
		if m > 12 {
			m = 1
			y++
		}
	}
	from := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, -1)
	return spanBounds(from, to)
}

func relativeYear(now time.Time, qualifier string) Range {
	y := now.Year()
	switch qualifier {
	case "last":
		y--
	case "next":
		y++
	}
	from := time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
	to := time.Date(y, time.December, 31, 0, 0, 0, 0, now.Location())
	return spanBounds(from, to)
}

func relativeQuarter(now time.Time, qualifier string) Range {
	q := (int(now.Month()) - 1) / 3
	y := now.Year()
	switch qualifier {
	case "last":
		q--
		if q < 0 {
			q = 3
			y--
		}
	case "next":
		q++
		if q > 3 {
			q = 0
			y++
		}
	}
	startMonth := time.Month(q*3 + 1)
	from := time.Date(y, startMonth, 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 3, -1)
	return spanBounds(from, to)
}

// relativeFinancialYear assumes an April-to-March financial year, a common
// convention; the span is adjusted the same way as a calendar year.
func relativeFinancialYear(now time.Time, qualifier string) Range {
	y := now.Year()
	if now.Month() < time.April {
		y--
	}
	switch qualifier {
	case "last":
		y--
	case "next":
		y++
	}
	from := time.Date(y, time.April, 1, 0, 0, 0, 0, now.Location())
	to := time.Date(y+1, time.March, 31, 0, 0, 0, 0, now.Location())
	return spanBounds(from, to)
}

// --- counted spans: "last/past/previous/next N {day|week|month|year}s" --

var reCountedSpan = regexp.MustCompile(`\b(last|past|previous|next)\s+(\d+)\s+(day|week|month|year)s?\b`)

func tryCountedSpan(lower string, now time.Time) (Range, string, bool) {
	m := reCountedSpan.FindStringSubmatch(lower)
	if m == nil {
		return Range{}, "", false
	}
	qualifier := m[1]
	n, _ := strconv.Atoi(m[2])
	unit := m[3]

	sign := -1
	if qualifier == "next" {
		sign = 1
	}

	var from, to time.Time
	switch unit {
	case "day":
		if sign < 0 {
			from, to = now.AddDate(0, 0, -n), now
		} else {
			from, to = now, now.AddDate(0, 0, n)
		}
	case "week":
		if sign < 0 {
			from, to = now.AddDate(0, 0, -7*n), now
		} else {
			from, to = now, now.AddDate(0, 0, 7*n)
		}
	case "month":
		if sign < 0 {
			from, to = now.AddDate(0, -n, 0), now
		} else {
			from, to = now, now.AddDate(0, n, 0)
		}
	case "year":
		if sign < 0 {
			from, to = now.AddDate(-n, 0, 0), now
		} else {
			from, to = now, now.AddDate(n, 0, 0)
		}
	}
	return spanBounds(from, to), m[0], true
}

// --- modifiers: "early/mid/late/beginning of/start of/end of <span>" ----

var reModifier = regexp.MustCompile(`\b(early|mid|late|beginning of|start of|end of)\s+(.+)$`)

func tryModifiedSpan(lower string, now time.Time) (Range, string, bool) {
	m := reModifier.FindStringSubmatch(lower)
	if m == nil {
		return Range{}, "", false
	}
	modifier, inner := m[1], m[2]

	var innerRange Range
	var innerMatch string
	var ok bool
	if innerRange, innerMatch, ok = tryCountedSpan(inner, now); !ok {
		if innerRange, innerMatch, ok = tryRelativeSpan(inner, now); !ok {
			if innerRange, innerMatch, ok = tryLiteralDate(inner); !ok {
				return Range{}, "", false
			}
		}
	}

	total := innerRange.To.Sub(innerRange.From)
	third := total / 3

	var from, to time.Time
	switch modifier {
	case "early", "beginning of", "start of":
		from, to = innerRange.From, innerRange.From.Add(third)
	case "late", "end of":
		from, to = innerRange.To.Add(-third), innerRange.To
	case "mid":
		from, to = innerRange.From.Add(third), innerRange.From.Add(2*third)
	}
	return Range{From: from, To: to}, modifier + " " + innerMatch, true
}
