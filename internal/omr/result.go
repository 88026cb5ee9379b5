// Package omr wires the processing stages into a single pipeline that turns
// a scanned bubble sheet into a confidence-scored result.
package omr

import "encoding/json"

// Result is the structured output of one pipeline run.
//
// Invariants: Answers is populated only when AlignmentFound is true; all
// confidence values are in [0,1]; Error is set exactly when Success is false.
type Result struct {
	Success               bool   `json:"success"`
	StudentNumberDetected string `json:"student_number_detected,omitempty"`
	StudentID             string `json:"student_id,omitempty"`
	StudentName           string `json:"student_name,omitempty"`

	// Subjects preserves the template's section order; Answers maps each
	// subject to its per-question labels in question order.
	Subjects []string            `json:"subjects,omitempty"`
	Answers  map[string][]string `json:"answers,omitempty"`

	ConfidenceScore         float64 `json:"confidence_score"`
	StudentNumberConfidence float64 `json:"student_number_confidence"`
	AnswersConfidence       float64 `json:"answers_confidence"`

	ImagePath      string `json:"image_path"`
	AlignmentFound bool   `json:"alignment_found"`
	Error          string `json:"error,omitempty"`

	Processing struct {
		TotalNs int64 `json:"total_ns"`
	} `json:"processing"`
}

// Failure reasons recorded in Result.Error for short-circuited runs.
const (
	ReasonAlignmentNotFound = "alignment marks not found"
	ReasonLowConfidence     = "confidence below acceptance threshold"
)

// Marshal encodes the result in its canonical wire form.
func (r *Result) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalResult decodes a stored result payload.
func UnmarshalResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
