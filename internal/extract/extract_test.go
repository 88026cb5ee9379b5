package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduscan/markscan/internal/align"
	"github.com/eduscan/markscan/internal/ingest"
	"github.com/eduscan/markscan/internal/template"
	"github.com/eduscan/markscan/internal/testutil"
)

func alignedSheet(t *testing.T, fill testutil.FormFill) (*ingest.Raster, *align.Transform, *template.Template) {
	t.Helper()
	tpl, err := template.NewRegistry().Get(template.StandardFourChoice)
	require.NoError(t, err)
	fill.Scale = 4
	r := testutil.RenderRaster(t, tpl, fill)
	tr, err := align.Detect(r, tpl, align.DefaultConfig())
	require.NoError(t, err)
	return r, tr, tpl
}

func TestReadCleanSheet(t *testing.T) {
	tpl0, err := template.NewRegistry().Get(template.StandardFourChoice)
	require.NoError(t, err)
	fill := testutil.CleanFill(tpl0, "20250142")
	r, tr, tpl := alignedSheet(t, fill)

	sheet := Read(r, tr, tpl)

	require.Len(t, sheet.Digits, 8)
	wantDigits := []int{2, 0, 2, 5, 0, 1, 4, 2}
	for i, d := range sheet.Digits {
		assert.Equal(t, OutcomeSingle, d.Outcome, "digit column %d", i)
		assert.Equal(t, wantDigits[i], d.Digit, "digit column %d", i)
		assert.Greater(t, d.Separation, 0.5, "digit column %d", i)
	}

	require.Len(t, sheet.Subjects, 2)
	for _, sub := range sheet.Subjects {
		require.Len(t, sub.Answers, 20)
		assert.Zero(t, sub.AmbiguousCount())
		for q, a := range sub.Answers {
			assert.Equal(t, fill.Answers[sub.Subject][q], a,
				"%s question %d", sub.Subject, q)
			assert.Equal(t, OutcomeSingle, sub.Outcomes[q])
		}
	}
}

func TestReadBlankQuestions(t *testing.T) {
	// Mark only the first question of each subject, leave the rest blank.
	fill := testutil.FormFill{
		StudentNumber: "20250142",
		Answers: map[string][]string{
			"Matematik": {"A"},
			"Turkce":    {"C"},
		},
	}
	r, tr, tpl := alignedSheet(t, fill)

	sheet := Read(r, tr, tpl)

	require.Len(t, sheet.Subjects, 2)
	for _, sub := range sheet.Subjects {
		assert.Equal(t, OutcomeSingle, sub.Outcomes[0])
		for q := 1; q < len(sub.Outcomes); q++ {
			assert.Equal(t, OutcomeBlank, sub.Outcomes[q], "%s question %d", sub.Subject, q)
			assert.Equal(t, Blank, sub.Answers[q])
		}
	}
}

func TestReadDoubleMarkIsAmbiguous(t *testing.T) {
	tpl0, err := template.NewRegistry().Get(template.StandardFourChoice)
	require.NoError(t, err)
	fill := testutil.CleanFill(tpl0, "20250142")
	// Question 3 of Matematik gets a second mark on top of its answer.
	fill.Extra = []testutil.CellMark{{Subject: "Matematik", Question: 2, Option: 3}}
	r, tr, tpl := alignedSheet(t, fill)

	sheet := Read(r, tr, tpl)

	mat := sheet.Subjects[0]
	require.Equal(t, "Matematik", mat.Subject)
	assert.Equal(t, OutcomeAmbiguous, mat.Outcomes[2])
	assert.Equal(t, Ambiguous, mat.Answers[2])
	assert.Equal(t, 1, mat.AmbiguousCount())

	// The double mark never leaks into neighboring questions.
	assert.Equal(t, OutcomeSingle, mat.Outcomes[1])
	assert.Equal(t, OutcomeSingle, mat.Outcomes[3])
}

func TestReadBlankDigitColumn(t *testing.T) {
	// Six digits in an eight column grid leaves two blank columns.
	fill := testutil.CleanFill(mustTemplate(t), "202501")
	r, tr, tpl := alignedSheet(t, fill)

	sheet := Read(r, tr, tpl)

	require.Len(t, sheet.Digits, 8)
	for i := range 6 {
		assert.Equal(t, OutcomeSingle, sheet.Digits[i].Outcome)
	}
	assert.Equal(t, OutcomeBlank, sheet.Digits[6].Outcome)
	assert.Equal(t, OutcomeBlank, sheet.Digits[7].Outcome)
	assert.Equal(t, -1, sheet.Digits[6].Digit)
}

func mustTemplate(t *testing.T) *template.Template {
	t.Helper()
	tpl, err := template.NewRegistry().Get(template.StandardFourChoice)
	require.NoError(t, err)
	return tpl
}

func TestClassifyQuestion(t *testing.T) {
	det := template.Detection{FillThreshold: 0.45, EmptyThreshold: 0.15}
	options := []string{"A", "B", "C", "D"}

	cases := []struct {
		name    string
		ratios  []float64
		answer  string
		outcome Outcome
	}{
		{"single", []float64{0.9, 0.02, 0.03, 0.01}, "A", OutcomeSingle},
		{"single other option", []float64{0.0, 0.05, 0.88, 0.02}, "C", OutcomeSingle},
		{"blank", []float64{0.02, 0.03, 0.01, 0.04}, Blank, OutcomeBlank},
		{"double mark", []float64{0.9, 0.85, 0.02, 0.01}, Ambiguous, OutcomeAmbiguous},
		{"indeterminate smudge", []float64{0.9, 0.3, 0.02, 0.01}, Ambiguous, OutcomeAmbiguous},
		{"smudge only", []float64{0.3, 0.02, 0.02, 0.01}, Ambiguous, OutcomeAmbiguous},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			answer, outcome, _ := classifyQuestion(c.ratios, options, det)
			assert.Equal(t, c.answer, answer)
			assert.Equal(t, c.outcome, outcome)
		})
	}
}

func TestClassifyDigit(t *testing.T) {
	det := template.Detection{FillThreshold: 0.45, EmptyThreshold: 0.15}

	ratios := make([]float64, template.DigitRows)
	ratios[7] = 0.95
	d := classifyDigit(ratios, det)
	assert.Equal(t, OutcomeSingle, d.Outcome)
	assert.Equal(t, 7, d.Digit)
	assert.InDelta(t, 0.95, d.Separation, 1e-9)

	blank := classifyDigit(make([]float64, template.DigitRows), det)
	assert.Equal(t, OutcomeBlank, blank.Outcome)

	double := make([]float64, template.DigitRows)
	double[1], double[5] = 0.9, 0.8
	assert.Equal(t, OutcomeAmbiguous, classifyDigit(double, det).Outcome)
}

func TestSeparation(t *testing.T) {
	assert.InDelta(t, 0.7, separation([]float64{0.9, 0.2, 0.1}), 1e-9)
	assert.InDelta(t, 0.0, separation([]float64{0.5, 0.5}), 1e-9)
	assert.Zero(t, separation([]float64{0.5}))
}
