// Package extract samples the bubble fields of an aligned form and
// classifies each as filled, empty or ambiguous.
package extract

import (
	"github.com/eduscan/markscan/internal/align"
	"github.com/eduscan/markscan/internal/ingest"
	"github.com/eduscan/markscan/internal/template"
)

// Answer labels for questions without a single confident choice.
const (
	// Blank marks a question with no filled bubble.
	Blank = ""
	// Ambiguous marks a question with multiple filled bubbles or a fill
	// intensity in the indeterminate band. It is never resolved to an
	// arbitrary choice.
	Ambiguous = "?"
)

// Outcome classifies the resolution of one question or digit column.
type Outcome int

const (
	// OutcomeSingle means exactly one bubble was confidently filled.
	OutcomeSingle Outcome = iota
	// OutcomeBlank means no bubble was filled.
	OutcomeBlank
	// OutcomeAmbiguous means multiple bubbles appeared filled, or a bubble
	// fell in the indeterminate intensity band.
	OutcomeAmbiguous
)

// DigitRead is the classification of one student-number digit column.
type DigitRead struct {
	Outcome Outcome
	// Digit is the detected digit row, valid only for OutcomeSingle.
	Digit int
	// Separation is the fill-ratio gap between the darkest and second
	// darkest bubble in the column.
	Separation float64
}

// SubjectReading holds the ordered per-question answers for one subject.
type SubjectReading struct {
	Subject string
	// Answers holds one entry per question in question order: an option
	// label, Blank, or Ambiguous.
	Answers []string
	// Outcomes parallels Answers.
	Outcomes []Outcome
	// Separations parallels Answers with per-question fill-ratio gaps.
	Separations []float64
}

// AmbiguousCount returns the number of ambiguous questions.
func (s *SubjectReading) AmbiguousCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o == OutcomeAmbiguous {
			n++
		}
	}
	return n
}

// Sheet is the full field classification of one scanned form.
type Sheet struct {
	// Digits holds one read per student-number column, left to right.
	Digits []DigitRead
	// Subjects holds the answer sections in template order.
	Subjects []SubjectReading
}

// Read samples every bubble region of the template through the alignment
// transform and classifies the fields.
func Read(r *ingest.Raster, tr *align.Transform, tpl *template.Template) *Sheet {
	s := newSampler(r.Gray, tr)
	det := tpl.Detection

	sheet := &Sheet{}

	// Student number grid, column-major: each column encodes one digit.
	grid := tpl.StudentNumber
	for col := range grid.Columns {
		ratios := make([]float64, template.DigitRows)
		for row := range template.DigitRows {
			ratios[row] = s.fillRatio(grid.CellCenter(row, col), grid.BubbleRadius)
		}
		sheet.Digits = append(sheet.Digits, classifyDigit(ratios, det))
	}

	for _, sec := range tpl.Sections {
		reading := SubjectReading{
			Subject:     sec.Subject,
			Answers:     make([]string, 0, sec.Questions),
			Outcomes:    make([]Outcome, 0, sec.Questions),
			Separations: make([]float64, 0, sec.Questions),
		}
		for q := range sec.Questions {
			ratios := make([]float64, len(sec.Options))
			for opt := range sec.Options {
				ratios[opt] = s.fillRatio(sec.CellCenter(q, opt), sec.BubbleRadius)
			}
			answer, outcome, sep := classifyQuestion(ratios, sec.Options, det)
			reading.Answers = append(reading.Answers, answer)
			reading.Outcomes = append(reading.Outcomes, outcome)
			reading.Separations = append(reading.Separations, sep)
		}
		sheet.Subjects = append(sheet.Subjects, reading)
	}

	return sheet
}

// classifyQuestion resolves one question row of fill ratios.
// Exactly one filled bubble yields that choice; zero yields Blank; multiple
// filled, or any bubble in the indeterminate band, yields Ambiguous.
func classifyQuestion(ratios []float64, options []string, det template.Detection) (string, Outcome, float64) {
	filled, indeterminate, pick := countCells(ratios, det)
	sep := separation(ratios)

	switch {
	case filled == 1 && indeterminate == 0:
		return options[pick], OutcomeSingle, sep
	case filled == 0 && indeterminate == 0:
		return Blank, OutcomeBlank, sep
	default:
		return Ambiguous, OutcomeAmbiguous, sep
	}
}

// classifyDigit resolves one digit column of fill ratios.
func classifyDigit(ratios []float64, det template.Detection) DigitRead {
	filled, indeterminate, pick := countCells(ratios, det)
	sep := separation(ratios)

	switch {
	case filled == 1 && indeterminate == 0:
		return DigitRead{Outcome: OutcomeSingle, Digit: pick, Separation: sep}
	case filled == 0 && indeterminate == 0:
		return DigitRead{Outcome: OutcomeBlank, Digit: -1, Separation: sep}
	default:
		return DigitRead{Outcome: OutcomeAmbiguous, Digit: -1, Separation: sep}
	}
}

func countCells(ratios []float64, det template.Detection) (filled, indeterminate, pick int) {
	pick = -1
	for i, r := range ratios {
		switch {
		case r >= det.FillThreshold:
			filled++
			pick = i
		case r > det.EmptyThreshold:
			indeterminate++
		}
	}
	return filled, indeterminate, pick
}

// separation is the gap between the two darkest cells. A wide gap means the
// mark stands out cleanly from its neighbors.
func separation(ratios []float64) float64 {
	if len(ratios) < 2 {
		return 0
	}
	first, second := 0.0, 0.0
	for _, r := range ratios {
		if r > first {
			first, second = r, first
		} else if r > second {
			second = r
		}
	}
	return first - second
}
