package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduscan/markscan/internal/omr"
)

func successfulResult() *omr.Result {
	return &omr.Result{
		Success:   true,
		StudentID: "stu-1",
		Subjects:  []string{"Matematik", "Turkce"},
		Answers: map[string][]string{
			"Matematik": {"A", "B", "?", "", "D"},
			"Turkce":    {"a", "B", "C", "C", "C"},
		},
	}
}

func answerKey() map[string][]string {
	return map[string][]string{
		"Matematik": {"A", "B", "C", "D", "A"},
		"Turkce":    {"A", "B", "C", "D", "A"},
	}
}

func TestFromOMRGrades(t *testing.T) {
	er, err := FromOMR(successfulResult(), "exam-1", "stu-1", answerKey())
	require.NoError(t, err)

	assert.Equal(t, "exam-1", er.ExamID)
	assert.Equal(t, "stu-1", er.StudentID)
	require.Len(t, er.Subjects, 2)

	// Matematik: A,B correct; "?" ambiguous; "" empty; D wrong.
	mat := er.Subjects[0]
	assert.Equal(t, "Matematik", mat.Subject)
	assert.Equal(t, 2, mat.Correct)
	assert.Equal(t, 1, mat.Wrong)
	assert.Equal(t, 1, mat.Empty)
	assert.Equal(t, 1, mat.Ambiguous)
	assert.InDelta(t, 2-0.25, mat.Net, 1e-9)

	// Turkce: case-insensitive "a" counts; 3 correct, 2 wrong.
	tur := er.Subjects[1]
	assert.Equal(t, 3, tur.Correct)
	assert.Equal(t, 2, tur.Wrong)
	assert.InDelta(t, 3-0.5, tur.Net, 1e-9)

	assert.InDelta(t, mat.Net+tur.Net, er.TotalNet, 1e-9)
	assert.InDelta(t, er.TotalNet*5, er.Score, 1e-9)
	assert.False(t, er.GradedAt.IsZero())
}

func TestFromOMRFourWrongCancelOneCorrect(t *testing.T) {
	res := &omr.Result{
		Success:   true,
		StudentID: "stu-1",
		Subjects:  []string{"Matematik"},
		Answers:   map[string][]string{"Matematik": {"A", "B", "B", "B", "B"}},
	}
	key := map[string][]string{"Matematik": {"A", "A", "A", "A", "A"}}

	er, err := FromOMR(res, "e", "stu-1", key)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, er.TotalNet, 1e-9)
	assert.InDelta(t, 0.0, er.Score, 1e-9)
}

func TestFromOMRRejectsUnsuccessfulResult(t *testing.T) {
	res := successfulResult()
	res.Success = false
	_, err := FromOMR(res, "e", "stu-1", answerKey())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFromOMRRequiresStudentID(t *testing.T) {
	_, err := FromOMR(successfulResult(), "e", "", answerKey())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "student id")
}

func TestFromOMRShapeMismatches(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string][]string)
	}{
		{"missing subject", func(key map[string][]string) { delete(key, "Turkce") }},
		{"count mismatch", func(key map[string][]string) { key["Matematik"] = []string{"A"} }},
		{"unknown subject", func(key map[string][]string) { key["Fizik"] = []string{"A"} }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			key := answerKey()
			c.mutate(key)
			_, err := FromOMR(successfulResult(), "e", "stu-1", key)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestFromOMRNilResult(t *testing.T) {
	_, err := FromOMR(nil, "e", "stu-1", answerKey())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
