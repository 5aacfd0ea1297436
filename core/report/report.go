// Package report holds the aggregation rules: attendance percentages and letter grades.
package report

import "math"

// AttendanceSummary aggregates the attendance records of one student over a period.
// AbsentDays counts every day not marked present, so late and half days count as absent.
type AttendanceSummary struct {
	TotalDays   int     `json:"total_days"`
	PresentDays int     `json:"present_days"`
	AbsentDays  int     `json:"absent_days"`
	LateDays    int     `json:"late_days"`
	HalfDays    int     `json:"half_days"`
	Percentage  float64 `json:"percentage"`
}

func NewAttendanceSummary(total, present, late, halfDays int) AttendanceSummary {
	return AttendanceSummary{
		TotalDays:   total,
		PresentDays: present,
		AbsentDays:  total - present,
		LateDays:    late,
		HalfDays:    halfDays,
		Percentage:  Percentage(present, total),
	}
}

// Percentage returns part/total*100 rounded to 2 decimals, or 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(total) * 100)
}

// Round2 rounds v to 2 decimals, halves to even.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

var gradeBreakpoints = []struct {
	min   float64
	grade string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B+"},
	{60, "B"},
	{50, "C"},
}

// LetterGrade maps obtained/max*100 onto the grade scale; each band includes its lower bound.
func LetterGrade(obtained, max float64) string {
	if max <= 0 {
		return "F"
	}
	pct := obtained * 100 / max
	for _, bp := range gradeBreakpoints {
		if pct >= bp.min {
			return bp.grade
		}
	}
	return "F"
}
