package adapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/massalia/agenda/internal/event"
	"github.com/massalia/agenda/internal/textutil"
)

var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"decembre":  time.December,
}

var (
	// "du 2 au 4 septembre 2026", "2 au 4 septembre"
	rangeRe = regexp.MustCompile(`(?:du\s+)?(\d{1,2})\s+au\s+(\d{1,2})\s+([a-z]+)(?:\s+(\d{4}))?`)
	// "2 septembre 2026", "2 septembre"
	longRe = regexp.MustCompile(`(\d{1,2})(?:er)?\s+([a-z]+)(?:\s+(\d{4}))?`)
	// "02/09/2026", "2/9/26"
	slashRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	// "2026-09-02"
	isoRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	// "20h30", "20h", "20:30"
	clockRe = regexp.MustCompile(`(\d{1,2})\s*[h:]\s*(\d{2})?`)
)

// cleanDate lowercases and strips accents but keeps the punctuation the
// numeric date formats rely on ("02/09/2026", "2026-09-02").
func cleanDate(text string) string {
	return strings.ToLower(textutil.StripAccents(text))
}

// ParseDate extracts a calendar date from French event-listing text.
// The reference year fills in listings that omit it; a date that would
// land more than a month in the past rolls over to the next year.
func ParseDate(text string, ref time.Time) (time.Time, error) {
	norm := cleanDate(text)

	if m := isoRe.FindStringSubmatch(norm); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return date(year, time.Month(month), day)
	}
	if m := slashRe.FindStringSubmatch(norm); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return date(year, time.Month(month), day)
	}
	if m := longRe.FindStringSubmatch(norm); m != nil {
		month, ok := frenchMonths[m[2]]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown month %q in %q", m[2], text)
		}
		day, _ := strconv.Atoi(m[1])
		if m[3] != "" {
			year, _ := strconv.Atoi(m[3])
			return date(year, month, day)
		}
		return inferYear(ref, month, day)
	}
	return time.Time{}, fmt.Errorf("no date found in %q", text)
}

// ParseRange extracts a multi-day range like "du 2 au 4 septembre".
// Single dates return a one-element slice.
func ParseRange(text string, ref time.Time) ([]time.Time, error) {
	norm := cleanDate(text)

	if m := rangeRe.FindStringSubmatch(norm); m != nil {
		month, ok := frenchMonths[m[3]]
		if !ok {
			return nil, fmt.Errorf("unknown month %q in %q", m[3], text)
		}
		first, _ := strconv.Atoi(m[1])
		last, _ := strconv.Atoi(m[2])
		if last < first {
			return nil, fmt.Errorf("inverted range in %q", text)
		}

		var start time.Time
		var err error
		if m[4] != "" {
			year, _ := strconv.Atoi(m[4])
			start, err = date(year, month, first)
		} else {
			start, err = inferYear(ref, month, first)
		}
		if err != nil {
			return nil, err
		}

		days := make([]time.Time, 0, last-first+1)
		for d := 0; d <= last-first; d++ {
			days = append(days, start.AddDate(0, 0, d))
		}
		return days, nil
	}

	single, err := ParseDate(text, ref)
	if err != nil {
		return nil, err
	}
	return []time.Time{single}, nil
}

// ParseClock extracts a start time of day like "20h30" or "20:30".
func ParseClock(text string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, 0, fmt.Errorf("no time found in %q", text)
	}
	hour, _ = strconv.Atoi(m[1])
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", text)
	}
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
		if minute > 59 {
			return 0, 0, fmt.Errorf("invalid minute in %q", text)
		}
	}
	return hour, minute, nil
}

// at places a time of day on a calendar date in the reference zone.
func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, event.Paris)
}

func date(year int, month time.Month, day int) (time.Time, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, event.Paris)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("invalid date %d-%d-%d", year, month, day)
	}
	return t, nil
}

// inferYear picks the year for listings that omit it: the current year
// unless the date already passed more than a month ago, then next year.
func inferYear(ref time.Time, month time.Month, day int) (time.Time, error) {
	t, err := date(ref.Year(), month, day)
	if err != nil {
		return time.Time{}, err
	}
	if t.Before(ref.AddDate(0, -1, 0)) {
		return date(ref.Year()+1, month, day)
	}
	return t, nil
}
