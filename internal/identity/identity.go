// Package identity assembles the detected student number and resolves it
// against the external roster directory.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eduscan/markscan/internal/extract"
)

var (
	// ErrStudentNotFound means the detected number matches no roster record.
	ErrStudentNotFound = errors.New("student number not found in roster")
	// ErrAmbiguousNumber means blank or multiply-marked digit columns leave
	// the number uncertain. The resolver never guesses a digit.
	ErrAmbiguousNumber = errors.New("student number is ambiguous")
)

// Validation is the roster directory's answer for one number.
type Validation struct {
	Valid       bool   `json:"valid"`
	StudentID   string `json:"studentId,omitempty"`
	StudentName string `json:"studentName,omitempty"`
}

// Directory is the external roster lookup. Implementations must use exact
// matching only.
type Directory interface {
	ValidateStudentNumber(ctx context.Context, number string) (Validation, error)
}

// Number is an assembled candidate student number.
type Number struct {
	// Candidate is the digit string with '?' standing in for ambiguous
	// columns. Blank columns are omitted, so a short candidate signals an
	// incomplete number.
	Candidate string
	// Complete reports whether every column yielded a digit.
	Complete bool
	// Ambiguous reports whether any column had multiple or indeterminate
	// marks.
	Ambiguous bool
}

// Assemble builds the candidate number from the digit-grid classification.
func Assemble(digits []extract.DigitRead) Number {
	var b strings.Builder
	n := Number{Complete: true}
	for _, d := range digits {
		switch d.Outcome {
		case extract.OutcomeSingle:
			b.WriteString(strconv.Itoa(d.Digit))
		case extract.OutcomeBlank:
			n.Complete = false
		case extract.OutcomeAmbiguous:
			b.WriteByte('?')
			n.Ambiguous = true
		}
	}
	n.Candidate = b.String()
	return n
}

// Resolution is a successfully resolved student identity.
type Resolution struct {
	Number      string
	StudentID   string
	StudentName string
}

// Resolver validates assembled numbers against a Directory.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver backed by the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve assembles the number and looks it up. Incomplete or ambiguous
// numbers return ErrAmbiguousNumber without consulting the roster; a clean
// number absent from the roster returns ErrStudentNotFound. The candidate
// number is returned in both cases so callers can surface it for review.
func (r *Resolver) Resolve(ctx context.Context, digits []extract.DigitRead) (Resolution, error) {
	n := Assemble(digits)
	res := Resolution{Number: n.Candidate}

	if !n.Complete || n.Ambiguous {
		return res, fmt.Errorf("%w: candidate %q", ErrAmbiguousNumber, n.Candidate)
	}

	v, err := r.dir.ValidateStudentNumber(ctx, n.Candidate)
	if err != nil {
		return res, fmt.Errorf("roster lookup for %q: %w", n.Candidate, err)
	}
	if !v.Valid {
		return res, fmt.Errorf("%w: %q", ErrStudentNotFound, n.Candidate)
	}

	res.StudentID = v.StudentID
	res.StudentName = v.StudentName
	return res, nil
}
