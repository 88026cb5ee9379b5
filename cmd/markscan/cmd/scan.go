package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduscan/markscan/internal/config"
	"github.com/eduscan/markscan/internal/identity"
	"github.com/eduscan/markscan/internal/omr"
	"github.com/eduscan/markscan/internal/template"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [files...]",
	Short: "Process scanned answer sheets",
	Long: `Process one or more scanned answer sheet images and print the detected
student number, answers and confidence scores.

Supported formats: JPEG, PNG, BMP

Examples:
  markscan scan sheet.png
  markscan scan *.jpg --format json
  markscan scan sheet.png --form standard-4choice --output result.json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		formType, _ := cmd.Flags().GetString("form")
		format, _ := cmd.Flags().GetString("format")
		outputFile, _ := cmd.Flags().GetString("output")

		if format != outputFormatJSON && format != outputFormatText {
			return fmt.Errorf("invalid output format: %s (must be json or text)", format)
		}

		pl, err := buildPipeline(cfg)
		if err != nil {
			return fmt.Errorf("failed to build pipeline: %w", err)
		}

		var out strings.Builder
		for _, path := range args {
			res, err := pl.Process(cmd.Context(), path, formType)
			if err != nil {
				return fmt.Errorf("processing %s: %w", path, err)
			}
			if format == outputFormatJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				out.Write(data)
				out.WriteByte('\n')
			} else {
				writeTextResult(&out, res)
			}
		}

		if outputFile != "" {
			return os.WriteFile(outputFile, []byte(out.String()), 0o644)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out.String())
		return err
	},
}

// buildPipeline assembles a pipeline from the loaded configuration. With no
// roster endpoint configured, every sheet resolves as an unknown student.
func buildPipeline(cfg *config.Config) (*omr.Pipeline, error) {
	var dir identity.Directory
	if cfg.Roster.BaseURL != "" {
		dir = identity.NewHTTPDirectory(cfg.Roster.BaseURL, time.Duration(cfg.Roster.TimeoutSec)*time.Second)
	} else {
		dir = identity.NewStaticDirectory()
	}

	return omr.NewBuilder().
		WithTemplateDir(cfg.Pipeline.TemplateDir).
		WithMinResolution(cfg.Pipeline.MinWidth, cfg.Pipeline.MinHeight).
		WithAcceptThreshold(cfg.Pipeline.AcceptThreshold).
		WithDirectory(dir).
		Build()
}

func writeTextResult(out *strings.Builder, res *omr.Result) {
	fmt.Fprintf(out, "File: %s\n", res.ImagePath)
	if !res.AlignmentFound {
		fmt.Fprintf(out, "  alignment marks not found\n\n")
		return
	}
	fmt.Fprintf(out, "  Student number: %s (confidence %.2f)\n",
		res.StudentNumberDetected, res.StudentNumberConfidence)
	if res.StudentID != "" {
		fmt.Fprintf(out, "  Student: %s (%s)\n", res.StudentName, res.StudentID)
	}
	for _, subject := range res.Subjects {
		fmt.Fprintf(out, "  %s: %s\n", subject, strings.Join(res.Answers[subject], " "))
	}
	fmt.Fprintf(out, "  Overall confidence: %.2f", res.ConfidenceScore)
	if res.Error != "" {
		fmt.Fprintf(out, " (%s)", res.Error)
	}
	out.WriteString("\n\n")
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().String("form", template.StandardFourChoice, "form template to read the sheet with")
	scanCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	scanCmd.Flags().StringP("output", "o", "", "write results to file instead of stdout")
}
