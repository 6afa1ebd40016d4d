package pdf

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/godetect/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageImage is one embedded image extracted from a PDF page.
type PageImage struct {
	Page  int
	Index int
	Image image.Image
}

// ExtractImages extracts the embedded images of a PDF, grouped by page number.
// An empty pageRange selects every page.
func ExtractImages(filename, pageRange string, creds *Credentials) (map[int][]PageImage, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "godetect-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, creds.configuration()); err != nil {
		if IsPasswordError(err) {
			return nil, fmt.Errorf("%w: %v", ErrPasswordRequired, err)
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	slog.Debug("extracted pdf images", "file", filename, "pages", len(result))
	return result, nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(filename string, creds *Credentials) (int, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: user-provided PDF path
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	n, err := api.PageCount(f, creds.configuration())
	if err != nil && IsPasswordError(err) {
		return 0, fmt.Errorf("%w: %v", ErrPasswordRequired, err)
	}
	return n, err
}

// SortedPages returns the page numbers of an extraction in ascending order.
func SortedPages(pages map[int][]PageImage) []int {
	out := make([]int, 0, len(pages))
	for p := range pages {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// collectExtractedImages walks dir and groups images by page number.
// It expects pdfcpu's naming: <base>_<page>_<obj>.<ext> or page_<page>_image_<idx>.<ext>.
func collectExtractedImages(dir string) (map[int][]PageImage, error) {
	result := make(map[int][]PageImage)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		pageNum, err := parsePageFromFilename(name)
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, name))
		if err != nil {
			slog.Debug("skipping unreadable pdf image", "file", name, "error", err)
			continue
		}
		result[pageNum] = append(result[pageNum], PageImage{
			Page:  pageNum,
			Index: len(result[pageNum]),
			Image: img,
		})
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from a pdfcpu image filename.
func parsePageFromFilename(filename string) (int, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return 0, errors.New("invalid filename format")
	}
	if parts[0] == "page" {
		return strconv.Atoi(parts[1])
	}
	// pdfcpu default: <base>_<page>_<objnr>
	return strconv.Atoi(parts[len(parts)-2])
}

// ParsePageRange parses a page range string like "1-5" or "1,3,5".
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token ("3") or a range token ("1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", start)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	if page < 1 {
		return nil, fmt.Errorf("page numbers start at 1, got %d", page)
	}
	return []int{page}, nil
}
