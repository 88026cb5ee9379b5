package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduscan/markscan/internal/ingest"
	"github.com/eduscan/markscan/internal/template"
	"github.com/eduscan/markscan/internal/utils"
)

// WriteTempForm renders a form into the test's temp directory and returns
// the image path.
func WriteTempForm(t *testing.T, tpl *template.Template, fill FormFill) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.png")
	require.NoError(t, SaveForm(tpl, fill, path))
	return path
}

// RenderRaster renders a form and runs it through ingestion normalization,
// skipping the file round trip.
func RenderRaster(t *testing.T, tpl *template.Template, fill FormFill) *ingest.Raster {
	t.Helper()
	img := RenderForm(tpl, fill)
	r, err := ingest.Normalize(img, utils.ImageMetadata{Path: "rendered"}, ingest.DefaultConfig())
	require.NoError(t, err)
	return r
}

// CleanFill returns a fill with every digit and question unambiguously
// marked: the given student number and the first option for every question.
func CleanFill(tpl *template.Template, studentNumber string) FormFill {
	answers := make(map[string][]string, len(tpl.Sections))
	for _, sec := range tpl.Sections {
		row := make([]string, sec.Questions)
		for q := range sec.Questions {
			row[q] = sec.Options[q%len(sec.Options)]
		}
		answers[sec.Subject] = row
	}
	return FormFill{StudentNumber: studentNumber, Answers: answers}
}
