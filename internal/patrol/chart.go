package patrol

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"petcare-console/internal/api"
)

// DefaultMinutes is charted for a log whose duration cannot be read.
const DefaultMinutes = 5

// DayStat is one bar of the weekly chart.
type DayStat struct {
	Day        time.Weekday
	Minutes    float64
	Detections int
}

// Chart is the weekly patrol summary, Monday first.
type Chart struct {
	Days            [7]DayStat
	TotalMinutes    float64
	TotalDetections int
}

// WeeklyChart buckets logs by the weekday of their start time. Logs with
// no start time count towards now's weekday.
func WeeklyChart(logs []api.PatrolLog, now time.Time) Chart {
	var c Chart
	for i := range c.Days {
		c.Days[i].Day = time.Weekday((i + 1) % 7)
	}
	for _, l := range logs {
		at := l.StartTime.Time
		if at.IsZero() {
			at = now
		}
		idx := (int(at.Weekday()) + 6) % 7
		m := DurationMinutes(l.Duration)
		c.Days[idx].Minutes += m
		c.Days[idx].Detections += l.DetectionCount
		c.TotalMinutes += m
		c.TotalDetections += l.DetectionCount
	}
	return c
}

// Max returns the largest per-day minutes and detections, for scaling bars.
func (c Chart) Max() (minutes float64, detections int) {
	for _, d := range c.Days {
		minutes = math.Max(minutes, d.Minutes)
		if d.Detections > detections {
			detections = d.Detections
		}
	}
	return minutes, detections
}

// DurationMinutes reads a human duration such as "10분", "35초", "1시간 5분",
// "10m", "1h30m" or a bare number of minutes. Unreadable or empty values
// yield DefaultMinutes.
func DurationMinutes(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultMinutes
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return round1(d.Minutes())
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		return n
	}

	var total float64
	var num strings.Builder
	matched := false
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if unicode.IsDigit(r) || r == '.' {
			num.WriteRune(r)
			continue
		}
		if unicode.IsSpace(r) || num.Len() == 0 {
			continue
		}
		n, err := strconv.ParseFloat(num.String(), 64)
		num.Reset()
		if err != nil {
			continue
		}
		switch {
		case r == '초':
			total += n / 60
		case r == '분':
			total += n
		case r == '시':
			total += n * 60
			if i+1 < len(runes) && runes[i+1] == '간' {
				i++
			}
		default:
			continue
		}
		matched = true
	}
	if !matched || total <= 0 {
		return DefaultMinutes
	}
	return round1(total)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
