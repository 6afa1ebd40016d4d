package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/godetect/internal/pdf"
)

// ProcessPDF detects objects in every image embedded in the selected pages of a PDF.
// Pages without images are omitted from the result.
func (p *Pipeline) ProcessPDF(ctx context.Context, filename, pageRange string, creds *pdf.Credentials) (*PDFResult, error) {
	if p == nil || p.engine == nil {
		return nil, ErrPipelineClosed
	}
	start := time.Now()

	pageImages, err := pdf.ExtractImages(filename, pageRange, creds)
	if err != nil {
		return nil, err
	}
	total, err := pdf.PageCount(filename, creds)
	if err != nil {
		slog.Warn("could not count pdf pages", "file", filename, "error", err)
	}

	res := &PDFResult{Filename: filename, TotalPages: total}
	for _, page := range pdf.SortedPages(pageImages) {
		pr, err := p.processPDFPage(ctx, page, pageImages[page])
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		res.Pages = append(res.Pages, pr)
	}
	res.TotalNs = time.Since(start).Nanoseconds()

	slog.Debug("pdf processed", "file", filename, "pages", len(res.Pages), "detections", res.ObjectCount())
	return res, nil
}

func (p *Pipeline) processPDFPage(ctx context.Context, page int, images []pdf.PageImage) (PDFPageResult, error) {
	pr := PDFPageResult{PageNumber: page, Images: make([]*ImageResult, 0, len(images))}
	for _, pi := range images {
		r, err := p.ProcessImage(ctx, pi.Image)
		if err != nil {
			return pr, fmt.Errorf("image %d: %w", pi.Index, err)
		}
		r.Source = fmt.Sprintf("page %d image %d", page, pi.Index)
		pr.Images = append(pr.Images, r)
	}
	return pr, nil
}
