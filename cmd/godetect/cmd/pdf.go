package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/godetect/internal/pdf"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/spf13/cobra"
)

func newPDFCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf <file>...",
		Short: "Detect objects in images embedded in PDF files",
		Long: `Extract the images embedded in PDF pages and run detection on each of them.

Examples:
  godetect pdf report.pdf
  godetect pdf report.pdf --pages 1-3,7 --format table
  godetect pdf locked.pdf --password secret`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPDF(cmd, args)
		},
	}
	f := cmd.Flags()
	f.String("pages", "", "page range to process (e.g. 1-3,5)")
	f.String("password", "", "password for encrypted PDFs (used as user and owner password)")
	f.String("user-password", "", "user password for encrypted PDFs")
	f.String("owner-password", "", "owner password for encrypted PDFs")
	return cmd
}

func pdfCredentials(cmd *cobra.Command) *pdf.Credentials {
	password, _ := cmd.Flags().GetString("password")
	user, _ := cmd.Flags().GetString("user-password")
	owner, _ := cmd.Flags().GetString("owner-password")
	if user == "" {
		user = password
	}
	if owner == "" {
		owner = password
	}
	if user == "" && owner == "" {
		return nil
	}
	return &pdf.Credentials{UserPassword: user, OwnerPassword: owner}
}

func (a *app) runPDF(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(a.cfg.Output.Format)
	if !slices.Contains(pipeline.SupportedFormats, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			format, strings.Join(pipeline.SupportedFormats, ", "))
	}
	pages, _ := cmd.Flags().GetString("pages")
	if pages != "" {
		if _, err := pdf.ParsePageRange(pages); err != nil {
			return fmt.Errorf("invalid page range: %w", err)
		}
	}
	creds := pdfCredentials(cmd)

	pl, err := a.buildPipeline(nil)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	results := make([]*pipeline.PDFResult, 0, len(args))
	for _, file := range args {
		slog.Info("running model", "pdf", file, "pages", pages)
		res, err := pl.ProcessPDF(cmd.Context(), file, pages, creds)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		results = append(results, res)
	}

	var out string
	switch {
	case format == pipeline.FormatJSON && len(results) == 1:
		out, err = pipeline.PDFToJSON(results[0])
	case format == pipeline.FormatJSON:
		out, err = pdfResultsJSON(results)
	default:
		var images []*pipeline.ImageResult
		for _, r := range results {
			images = append(images, pipeline.PDFImages(r)...)
		}
		out, err = pipeline.FormatWith(images, format, a.formatOptions())
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, a.cfg.Output.File)
}

func pdfResultsJSON(results []*pipeline.PDFResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
