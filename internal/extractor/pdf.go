package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts text page by page, reconstructing reading order from
// row positions (top to bottom, then left to right). If that pass yields
// almost nothing, which is typical for scanned PDFs, it falls back to the library's
// plain-text extraction before giving up. Embedded raster images are OCRed
// best-effort and spliced after their page's text.
func (e *Extractor) extractPDF(ctx context.Context, content []byte) (text string, err error) {
	// The pdf library panics on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageText, rowErr := pageTextByRow(page)
		if rowErr != nil {
			e.logger.WithError(rowErr).WithField("page", pageNum).Warning("Row extraction failed on page")
		} else if pageText != "" {
			builder.WriteString(pageText)
			builder.WriteByte('\n')
		}

		if imgText := e.ocrEmbeddedImages(ctx, page); imgText != "" {
			builder.WriteString(imgText)
			builder.WriteByte('\n')
		}
	}

	text = builder.String()
	if len(strings.TrimSpace(text)) >= 100 {
		return text, nil
	}

	// Minimal text from the positional pass: retry with plain extraction.
	e.logger.Info("Positional extraction yielded minimal text, trying plain extraction")
	plain, plainErr := reader.GetPlainText()
	if plainErr != nil {
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		return "", fmt.Errorf("plain text fallback: %w", plainErr)
	}
	fallback, readErr := io.ReadAll(plain)
	if readErr != nil {
		return text, nil
	}
	if len(strings.TrimSpace(string(fallback))) > len(strings.TrimSpace(text)) {
		return string(fallback), nil
	}
	return text, nil
}

// pageTextByRow joins a page's text rows top-to-bottom. Rows come back sorted
// by descending position (PDF origin is bottom-left), each row already sorted
// horizontally.
func pageTextByRow(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Position > rows[j].Position
	})

	var lines []string
	for _, row := range rows {
		var words []string
		for _, word := range row.Content {
			if word.S != "" {
				words = append(words, word.S)
			}
		}
		if line := strings.TrimSpace(strings.Join(words, "")); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ocrEmbeddedImages walks the page's XObject resources and runs OCR over any
// stream that decodes as a raster image. Cross-reference lookups in the pdf
// library are unreliable for some producers, so every failure here is
// swallowed: embedded-image text is a bonus, never a requirement.
func (e *Extractor) ocrEmbeddedImages(ctx context.Context, page pdf.Page) (text string) {
	if e.engine == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Debug("Embedded image scan failed")
			text = ""
		}
	}()

	xobjects := page.V.Key("Resources").Key("XObject")
	if xobjects.IsNull() {
		return ""
	}

	var parts []string
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}

		data, err := io.ReadAll(obj.Reader())
		if err != nil {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			continue
		}

		recognized, err := e.recognizeImage(ctx, img)
		if err != nil {
			e.logger.WithError(err).Debug("OCR on embedded image failed")
			continue
		}
		if strings.TrimSpace(recognized) != "" {
			parts = append(parts, recognized)
		}
	}
	return strings.Join(parts, "\n")
}
