// Package ocr provides optical character recognition for scanned and
// photographed documents: a deterministic image preprocessing pipeline and a
// recognition engine abstraction backed by the Tesseract CLI.
package ocr

import (
	"context"
	"image"
)

// RecognizeConfig selects the engine mode and page-segmentation assumption
// for a single recognition pass.
type RecognizeConfig struct {
	// EngineMode maps to Tesseract's --oem flag. 3 selects the default
	// (LSTM where available).
	EngineMode int
	// PageSegMode maps to Tesseract's --psm flag. 6 assumes a uniform
	// block of text and works well on typical document scans.
	PageSegMode int
	// Languages overrides the engine's configured recognition language
	// list for this pass, e.g. "eng+ind". Empty keeps the engine default.
	Languages string
}

// DefaultRecognizeConfig returns the configuration used for the first
// recognition attempt.
func DefaultRecognizeConfig() RecognizeConfig {
	return RecognizeConfig{
		EngineMode:  3,
		PageSegMode: 6,
	}
}

// AlternatePageSegModes lists the segmentation modes retried, in order, when
// the default pass yields too little text. They cover fully automatic layout
// analysis, column text, single words and raw lines.
func AlternatePageSegModes() []int {
	return []int{3, 4, 8, 13}
}

// Engine recognizes text in images. Implementations must be safe for
// concurrent use.
type Engine interface {
	// Recognize runs a single OCR pass and returns the raw recognized text.
	Recognize(ctx context.Context, img image.Image, cfg RecognizeConfig) (string, error)

	// DetectOrientation estimates the rotation, in degrees clockwise,
	// needed to bring the page upright. Errors mean detection was
	// inconclusive, not that the image is unreadable.
	DetectOrientation(ctx context.Context, img image.Image) (float64, error)
}
