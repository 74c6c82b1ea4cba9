// Package extractor turns raw uploaded file bytes into plain text. It routes
// by file type: plain text, PDF, DOCX, CSV, and raster images via OCR.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/ocr"
)

// imageTypes lists the raster formats routed through the OCR path.
var imageTypes = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "tiff": {}, "tif": {}, "bmp": {}, "gif": {},
}

// ParseError wraps any extraction failure with the file it occurred on.
// Empty extracted text is not a ParseError: it simply yields no chunks.
type ParseError struct {
	Filename string
	FileType string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s file %q: %v", e.FileType, e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor extracts plain text from supported document formats.
type Extractor struct {
	engine       ocr.Engine
	preprocessor *ocr.Preprocessor
	logger       *logrus.Logger
}

// New creates an Extractor. engine and preprocessor back the image OCR path;
// passing nil disables it (image files then fail with a ParseError).
func New(engine ocr.Engine, preprocessor *ocr.Preprocessor, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{engine: engine, preprocessor: preprocessor, logger: logger}
}

// Extract returns the plain text of the given file content. fileType is the
// lower-cased extension without dot (pdf, docx, txt, csv, or an image type).
// An unsupported type or an extraction failure returns a *ParseError; a file
// that simply contains no text returns ("", nil).
func (e *Extractor) Extract(ctx context.Context, content []byte, fileType, filename string) (string, error) {
	fileType = strings.ToLower(fileType)
	log := e.logger.WithFields(logrus.Fields{"filename": filename, "file_type": fileType})
	log.Info("Starting text extraction")

	var (
		text string
		err  error
	)
	switch {
	case fileType == "txt":
		text = decodeText(content)
	case fileType == "pdf":
		text, err = e.extractPDF(ctx, content)
	case fileType == "docx":
		text, err = extractDOCX(content)
	case fileType == "csv":
		text, err = extractCSV(content)
	default:
		if _, ok := imageTypes[fileType]; ok {
			text, err = e.extractImage(ctx, content, filename)
		} else {
			err = fmt.Errorf("unsupported file type")
		}
	}

	if err != nil {
		return "", &ParseError{Filename: filename, FileType: fileType, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		log.Warning("No text extracted from file")
		return "", nil
	}

	log.WithField("characters", len(text)).Info("Text extraction completed")
	return text, nil
}

// Supported reports whether the extractor can handle the file type.
func Supported(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "txt", "pdf", "docx", "csv":
		return true
	default:
		_, ok := imageTypes[strings.ToLower(fileType)]
		return ok
	}
}
