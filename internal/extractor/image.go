package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/letha11/backend-chatbot/internal/ocr"
)

var (
	ocrWhitespaceRe = regexp.MustCompile(`\s+`)
	// Standalone I/l/1/o/O/0 immediately before a lowercase word are almost
	// always misreads of stray marks.
	ocrConfusionRe = regexp.MustCompile(`\b[Il1oO0]\b\s+([a-z])`)
	ocrPunctuation = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// extractImage decodes the image, normalizes it through the preprocessing
// pipeline and recognizes text, retrying with alternative page-segmentation
// modes when the first pass comes back nearly empty.
func (e *Extractor) extractImage(ctx context.Context, content []byte, filename string) (string, error) {
	if e.engine == nil {
		return "", fmt.Errorf("no recognition engine configured")
	}

	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	e.logger.WithFields(map[string]interface{}{
		"filename": filename,
		"format":   format,
		"width":    img.Bounds().Dx(),
		"height":   img.Bounds().Dy(),
	}).Info("Starting OCR processing")

	text, err := e.recognizeImage(ctx, img)
	if err != nil {
		return "", err
	}
	return cleanOCRText(text), nil
}

// recognizeImage runs the preprocessed image through the engine. If the
// default configuration recognizes fewer than 50 characters, it retries with
// each alternative segmentation mode and keeps the longest result.
func (e *Extractor) recognizeImage(ctx context.Context, img image.Image) (string, error) {
	if e.preprocessor != nil {
		img = e.preprocessor.Process(ctx, img)
	}

	cfg := ocr.DefaultRecognizeConfig()
	text, err := e.engine.Recognize(ctx, img, cfg)
	if err != nil {
		return "", fmt.Errorf("ocr recognition: %w", err)
	}

	if len(strings.TrimSpace(text)) < 50 {
		e.logger.Info("Minimal OCR output, trying alternative segmentation modes")
		best := text
		for _, psm := range ocr.AlternatePageSegModes() {
			altCfg := cfg
			altCfg.PageSegMode = psm
			alt, altErr := e.engine.Recognize(ctx, img, altCfg)
			if altErr != nil {
				e.logger.WithError(altErr).WithField("psm", psm).Warning("Alternative OCR pass failed")
				continue
			}
			if len(strings.TrimSpace(alt)) > len(strings.TrimSpace(best)) {
				best = alt
			}
		}
		text = best
	}
	return text, nil
}

// cleanOCRText strips recognition artifacts: isolated single characters that
// are not meaningful words, tokens dominated by punctuation, and common
// digit/letter confusions before lowercase runs.
func cleanOCRText(text string) string {
	if text == "" {
		return text
	}

	text = ocrWhitespaceRe.ReplaceAllString(text, " ")

	var kept []string
	for _, word := range strings.Fields(text) {
		if len(word) == 1 && !strings.ContainsAny(word, "aAiI0123456789") {
			continue
		}
		if len(word) > 1 && punctuationCount(word) > len(word)*7/10 {
			continue
		}
		kept = append(kept, word)
	}
	text = strings.Join(kept, " ")

	text = ocrConfusionRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(ocrWhitespaceRe.ReplaceAllString(text, " "))
}

func punctuationCount(word string) int {
	count := 0
	for _, r := range word {
		if strings.ContainsRune(ocrPunctuation, r) {
			count++
		}
	}
	return count
}
