// Package grade materializes a graded exam result from a completed OMR
// result and an externally supplied answer key.
package grade

import (
	"fmt"
	"strings"
	"time"

	"github.com/eduscan/markscan/internal/extract"
	"github.com/eduscan/markscan/internal/omr"
)

// ValidationError signals that the OMR result and the answer key do not fit
// together: a shape mismatch is a template/answer-key problem, not a scoring
// question, and is never papered over by truncating or padding.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("answer key validation: %s", e.Reason)
}

// wrongPenalty is the net deduction per wrong answer in the standard
// national exam scheme: four wrong answers cancel one correct one.
const wrongPenalty = 0.25

// scorePerNet converts net points to the exam score.
const scorePerNet = 5.0

// SubjectScore is the per-subject grading breakdown.
type SubjectScore struct {
	Subject string `json:"subject"`
	Correct int    `json:"correct"`
	Wrong   int    `json:"wrong"`
	Empty   int    `json:"empty"`
	// Ambiguous counts double-marked or indeterminate questions. They are
	// neither correct nor blank; they stay flagged for review and are not
	// penalized as wrong.
	Ambiguous int     `json:"ambiguous"`
	Net       float64 `json:"net"`
}

// ExamResult is a graded exam for one (exam, student) pair.
type ExamResult struct {
	ExamID    string         `json:"exam_id"`
	StudentID string         `json:"student_id"`
	Subjects  []SubjectScore `json:"subjects"`
	TotalNet  float64        `json:"total_net"`
	Score     float64        `json:"score"`
	GradedAt  time.Time      `json:"graded_at"`
}

// FromOMR grades a successful OMR result against the answer key. The key
// maps each subject to its ordered correct answers and must match the
// detected answers' shape exactly.
func FromOMR(result *omr.Result, examID, studentID string, key map[string][]string) (*ExamResult, error) {
	if result == nil || !result.Success || len(result.Answers) == 0 {
		return nil, &ValidationError{Reason: "OMR result is not a successful scan"}
	}
	if studentID == "" {
		return nil, &ValidationError{Reason: "student id is required"}
	}
	if err := checkShape(result, key); err != nil {
		return nil, err
	}

	er := &ExamResult{
		ExamID:    examID,
		StudentID: studentID,
		GradedAt:  time.Now().UTC(),
	}

	for _, subject := range result.Subjects {
		answers := result.Answers[subject]
		correct := key[subject]
		ss := SubjectScore{Subject: subject}
		for i, a := range answers {
			switch {
			case a == extract.Blank:
				ss.Empty++
			case a == extract.Ambiguous:
				ss.Ambiguous++
			case strings.EqualFold(a, correct[i]):
				ss.Correct++
			default:
				ss.Wrong++
			}
		}
		ss.Net = float64(ss.Correct) - wrongPenalty*float64(ss.Wrong)
		er.TotalNet += ss.Net
		er.Subjects = append(er.Subjects, ss)
	}

	er.Score = er.TotalNet * scorePerNet
	return er, nil
}

func checkShape(result *omr.Result, key map[string][]string) error {
	for _, subject := range result.Subjects {
		correct, ok := key[subject]
		if !ok {
			return &ValidationError{Reason: fmt.Sprintf("answer key missing subject %q", subject)}
		}
		if got, want := len(result.Answers[subject]), len(correct); got != want {
			return &ValidationError{Reason: fmt.Sprintf(
				"subject %q: detected %d answers, key has %d", subject, got, want)}
		}
	}
	for subject := range key {
		if _, ok := result.Answers[subject]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("answer key has unknown subject %q", subject)}
		}
	}
	return nil
}
