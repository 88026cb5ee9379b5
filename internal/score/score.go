// Package score derives per-field and aggregate confidence from field
// extraction results.
package score

import (
	"github.com/eduscan/markscan/internal/extract"
	"github.com/eduscan/markscan/internal/utils"
)

// Config holds the confidence bands and combination weights.
type Config struct {
	// Per-cell confidence bands. Single confident marks score full
	// confidence, blanks and multiples score reduced, fixed bands.
	DigitSingle   float64
	DigitBlank    float64
	DigitMultiple float64

	AnswerSingle    float64
	AnswerBlank     float64
	AnswerAmbiguous float64

	// MinSeparation is the fill-ratio gap below which a single mark is
	// considered weakly separated and its confidence attenuated.
	MinSeparation float64
	// WeakFactor scales the confidence of weakly separated marks.
	WeakFactor float64

	// StudentNumberWeight and AnswersWeight combine the sub-scores.
	// Misattributing a result to the wrong student is the costlier error,
	// so the student number never weighs less than the answers.
	StudentNumberWeight float64
	AnswersWeight       float64

	// AcceptThreshold is the minimum overall confidence for success.
	AcceptThreshold float64
}

// DefaultConfig returns the scoring defaults. The per-cell bands follow the
// established grading behavior: a deliberate blank answer is expected and
// scores high, a blank digit is a defect and scores low.
func DefaultConfig() Config {
	return Config{
		DigitSingle:         1.0,
		DigitBlank:          0.2,
		DigitMultiple:       0.4,
		AnswerSingle:        1.0,
		AnswerBlank:         0.8,
		AnswerAmbiguous:     0.4,
		MinSeparation:       0.25,
		WeakFactor:          0.7,
		StudentNumberWeight: 0.6,
		AnswersWeight:       0.4,
		AcceptThreshold:     0.85,
	}
}

// Scores holds the derived confidence values, all in [0,1].
type Scores struct {
	StudentNumber float64
	Answers       float64
	Overall       float64
}

// Compute derives the confidence scores for a classified sheet.
func Compute(sheet *extract.Sheet, cfg Config) Scores {
	sn := studentNumberConfidence(sheet.Digits, cfg)
	ans := answersConfidence(sheet.Subjects, cfg)

	wSum := cfg.StudentNumberWeight + cfg.AnswersWeight
	overall := 0.0
	if wSum > 0 {
		overall = (cfg.StudentNumberWeight*sn + cfg.AnswersWeight*ans) / wSum
	}

	return Scores{
		StudentNumber: utils.Clamp01(sn),
		Answers:       utils.Clamp01(ans),
		Overall:       utils.Clamp01(overall),
	}
}

// Accepts reports whether the overall confidence clears the acceptance
// threshold. Results below the threshold are still returned in full; they
// are routed to manual review instead of being auto-accepted.
func (c Config) Accepts(overall float64) bool {
	return overall >= c.AcceptThreshold
}

func studentNumberConfidence(digits []extract.DigitRead, cfg Config) float64 {
	if len(digits) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range digits {
		switch d.Outcome {
		case extract.OutcomeSingle:
			c := cfg.DigitSingle
			if d.Separation < cfg.MinSeparation {
				c *= cfg.WeakFactor
			}
			sum += c
		case extract.OutcomeBlank:
			sum += cfg.DigitBlank
		case extract.OutcomeAmbiguous:
			sum += cfg.DigitMultiple
		}
	}
	return sum / float64(len(digits))
}

func answersConfidence(subjects []extract.SubjectReading, cfg Config) float64 {
	total := 0
	sum := 0.0
	for _, s := range subjects {
		for i, o := range s.Outcomes {
			total++
			switch o {
			case extract.OutcomeSingle:
				c := cfg.AnswerSingle
				if s.Separations[i] < cfg.MinSeparation {
					c *= cfg.WeakFactor
				}
				sum += c
			case extract.OutcomeBlank:
				sum += cfg.AnswerBlank
			case extract.OutcomeAmbiguous:
				sum += cfg.AnswerAmbiguous
			}
		}
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}
