// Package grading maps scores to letter grades.
package grading

// Letter is a grade band.
type Letter string

const (
	A     Letter = "A"
	BPlus Letter = "B+"
	B     Letter = "B"
	C     Letter = "C"
	D     Letter = "D"
	E     Letter = "E"
)

type band struct {
	min    float64
	letter Letter
}

// evaluated top-down, first match wins
var bands = []band{
	{80, A},
	{70, BPlus},
	{60, B},
	{50, C},
	{40, D},
}

// GradeOf returns the letter for a subject score or an average.
// Scores are expected in [0, 100]; anything below 40 is an E.
func GradeOf(score float64) Letter {
	for _, b := range bands {
		if score >= b.min {
			return b.letter
		}
	}
	return E
}

// Summary is the total, average and grade of a set of scores.
type Summary struct {
	Total   int     `json:"total"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Grade   Letter  `json:"grade,omitempty"`
}

// Summarize adds up scores and grades their average. An empty set has no grade.
func Summarize(scores []int) Summary {
	var s Summary
	for _, v := range scores {
		s.Total += v
		s.Count++
	}
	if s.Count == 0 {
		return s
	}
	s.Average = float64(s.Total) / float64(s.Count)
	s.Grade = GradeOf(s.Average)
	return s
}
