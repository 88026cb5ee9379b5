package score

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/eduscan/markscan/internal/extract"
)

func digits(outcomes ...extract.Outcome) []extract.DigitRead {
	ds := make([]extract.DigitRead, len(outcomes))
	for i, o := range outcomes {
		ds[i] = extract.DigitRead{Outcome: o, Separation: 1}
	}
	return ds
}

func subject(outcomes ...extract.Outcome) extract.SubjectReading {
	s := extract.SubjectReading{Subject: "S"}
	for _, o := range outcomes {
		s.Outcomes = append(s.Outcomes, o)
		s.Separations = append(s.Separations, 1)
		s.Answers = append(s.Answers, "A")
	}
	return s
}

func TestComputeCleanSheetScoresFull(t *testing.T) {
	sheet := &extract.Sheet{
		Digits:   digits(extract.OutcomeSingle, extract.OutcomeSingle, extract.OutcomeSingle),
		Subjects: []extract.SubjectReading{subject(extract.OutcomeSingle, extract.OutcomeSingle)},
	}
	s := Compute(sheet, DefaultConfig())
	assert.InDelta(t, 1.0, s.StudentNumber, 1e-9)
	assert.InDelta(t, 1.0, s.Answers, 1e-9)
	assert.InDelta(t, 1.0, s.Overall, 1e-9)
}

func TestComputeDigitBands(t *testing.T) {
	cfg := DefaultConfig()

	blank := &extract.Sheet{Digits: digits(extract.OutcomeBlank)}
	assert.InDelta(t, cfg.DigitBlank, Compute(blank, cfg).StudentNumber, 1e-9)

	multi := &extract.Sheet{Digits: digits(extract.OutcomeAmbiguous)}
	assert.InDelta(t, cfg.DigitMultiple, Compute(multi, cfg).StudentNumber, 1e-9)

	mixed := &extract.Sheet{Digits: digits(extract.OutcomeSingle, extract.OutcomeBlank)}
	assert.InDelta(t, (1.0+cfg.DigitBlank)/2, Compute(mixed, cfg).StudentNumber, 1e-9)
}

func TestComputeAnswerBands(t *testing.T) {
	cfg := DefaultConfig()

	sheet := &extract.Sheet{Subjects: []extract.SubjectReading{
		subject(extract.OutcomeSingle, extract.OutcomeBlank, extract.OutcomeAmbiguous),
	}}
	want := (cfg.AnswerSingle + cfg.AnswerBlank + cfg.AnswerAmbiguous) / 3
	assert.InDelta(t, want, Compute(sheet, cfg).Answers, 1e-9)
}

func TestComputeWeakSeparationAttenuates(t *testing.T) {
	cfg := DefaultConfig()

	ds := digits(extract.OutcomeSingle)
	ds[0].Separation = 0.1
	sheet := &extract.Sheet{Digits: ds}
	assert.InDelta(t, cfg.DigitSingle*cfg.WeakFactor, Compute(sheet, cfg).StudentNumber, 1e-9)

	sub := subject(extract.OutcomeSingle)
	sub.Separations[0] = 0.1
	sheet = &extract.Sheet{Subjects: []extract.SubjectReading{sub}}
	assert.InDelta(t, cfg.AnswerSingle*cfg.WeakFactor, Compute(sheet, cfg).Answers, 1e-9)
}

func TestComputeWeightsFavorStudentNumber(t *testing.T) {
	cfg := DefaultConfig()
	sheet := &extract.Sheet{
		Digits:   digits(extract.OutcomeSingle),
		Subjects: []extract.SubjectReading{subject(extract.OutcomeAmbiguous)},
	}
	s := Compute(sheet, cfg)
	want := (cfg.StudentNumberWeight*1.0 + cfg.AnswersWeight*cfg.AnswerAmbiguous) /
		(cfg.StudentNumberWeight + cfg.AnswersWeight)
	assert.InDelta(t, want, s.Overall, 1e-9)
	assert.Greater(t, s.Overall, s.Answers)
}

func TestComputeEmptySheet(t *testing.T) {
	s := Compute(&extract.Sheet{}, DefaultConfig())
	assert.Zero(t, s.StudentNumber)
	assert.Zero(t, s.Answers)
	assert.Zero(t, s.Overall)
}

func TestAccepts(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Accepts(0.85))
	assert.True(t, cfg.Accepts(0.99))
	assert.False(t, cfg.Accepts(0.8499))
}

func genOutcome() gopter.Gen {
	return gen.IntRange(0, 2).Map(func(v int) extract.Outcome {
		return extract.Outcome(v)
	})
}

// TestCompute_ScoresStayInUnitInterval verifies all derived confidences are
// in [0,1] for arbitrary outcome mixes and separations.
func TestCompute_ScoresStayInUnitInterval(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("scores are within [0,1]", prop.ForAll(
		func(outcomes []extract.Outcome, seps []float64) bool {
			sheet := &extract.Sheet{Subjects: []extract.SubjectReading{{Subject: "S"}}}
			sub := &sheet.Subjects[0]
			for i, o := range outcomes {
				sep := 1.0
				if i < len(seps) {
					sep = seps[i]
				}
				sheet.Digits = append(sheet.Digits, extract.DigitRead{Outcome: o, Separation: sep})
				sub.Outcomes = append(sub.Outcomes, o)
				sub.Separations = append(sub.Separations, sep)
				sub.Answers = append(sub.Answers, "A")
			}

			s := Compute(sheet, DefaultConfig())
			inUnit := func(v float64) bool { return v >= 0 && v <= 1 }
			return inUnit(s.StudentNumber) && inUnit(s.Answers) && inUnit(s.Overall)
		},
		gen.SliceOf(genOutcome()),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
