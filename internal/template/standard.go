package template

// StandardFourChoice is the form type of the built-in A-D answer sheet.
const StandardFourChoice = "standard-4choice"

// standardFourChoice returns the built-in two-subject, four-option layout.
// Coordinates are a 250x350 logical grid (roughly A4 at 1 unit = 10px on a
// 300dpi scan).
func standardFourChoice() *Template {
	return &Template{
		Name:    StandardFourChoice,
		Version: 1,
		Width:   250,
		Height:  350,
		Fiducials: [4]Fiducial{
			{X: 15, Y: 15, Size: 8},
			{X: 235, Y: 15, Size: 8},
			{X: 235, Y: 335, Size: 8},
			{X: 15, Y: 335, Size: 8},
		},
		StudentNumber: DigitGrid{
			X:            40,
			Y:            40,
			Columns:      8,
			ColPitch:     10,
			RowPitch:     10,
			BubbleRadius: 3.5,
		},
		Sections: []Section{
			{
				Subject:      "Matematik",
				X:            40,
				Y:            160,
				Questions:    20,
				Options:      []string{"A", "B", "C", "D"},
				ColPitch:     10,
				RowPitch:     8,
				BubbleRadius: 3,
			},
			{
				Subject:      "Turkce",
				X:            140,
				Y:            160,
				Questions:    20,
				Options:      []string{"A", "B", "C", "D"},
				ColPitch:     10,
				RowPitch:     8,
				BubbleRadius: 3,
			},
		},
		Detection: Detection{
			FillThreshold:  0.45,
			EmptyThreshold: 0.15,
		},
	}
}
