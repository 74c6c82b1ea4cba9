package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var osdRotateRe = regexp.MustCompile(`Rotate:\s*(\d+)`)

// Config holds tesseract invocation settings.
type Config struct {
	// BinaryPath locates the tesseract binary. Empty resolves "tesseract"
	// from PATH.
	BinaryPath string
	// Languages is the recognition language list passed as -l, e.g.
	// "eng+ind". Used when a RecognizeConfig does not override it.
	Languages string
	// Timeout bounds each tesseract invocation.
	Timeout time.Duration
}

// DefaultConfig returns sensible engine defaults.
func DefaultConfig() Config {
	return Config{
		BinaryPath: "tesseract",
		Languages:  "eng+ind",
		Timeout:    60 * time.Second,
	}
}

// TesseractEngine shells out to the tesseract binary for recognition and
// orientation detection.
type TesseractEngine struct {
	config Config
	logger *logrus.Logger
}

// NewTesseractEngine creates an engine from the given configuration.
func NewTesseractEngine(config Config, logger *logrus.Logger) *TesseractEngine {
	if config.BinaryPath == "" {
		config.BinaryPath = "tesseract"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &TesseractEngine{config: config, logger: logger}
}

// Recognize renders the image to a temporary PNG and runs a single tesseract
// pass over it.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, cfg RecognizeConfig) (string, error) {
	imgPath, cleanup, err := writeTempPNG(img)
	if err != nil {
		return "", err
	}
	defer cleanup()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.config.BinaryPath, e.recognizeArgs(imgPath, cfg)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract recognition failed (psm %d): %w: %s",
			cfg.PageSegMode, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// recognizeArgs builds the tesseract command line for one recognition pass.
// The engine's configured language list applies unless the pass overrides it.
func (e *TesseractEngine) recognizeArgs(imgPath string, cfg RecognizeConfig) []string {
	args := []string{
		imgPath, "stdout",
		"--oem", strconv.Itoa(cfg.EngineMode),
		"--psm", strconv.Itoa(cfg.PageSegMode),
	}
	languages := cfg.Languages
	if languages == "" {
		languages = e.config.Languages
	}
	if languages != "" {
		args = append(args, "-l", languages)
	}
	return args
}

func (e *TesseractEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Timeout)
}

// DetectOrientation runs tesseract's orientation-and-script detection
// (--psm 0) and parses the suggested rotation from its report.
func (e *TesseractEngine) DetectOrientation(ctx context.Context, img image.Image) (float64, error) {
	imgPath, cleanup, err := writeTempPNG(img)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.config.BinaryPath, imgPath, "stdout", "--psm", "0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("orientation detection failed: %w: %s",
			err, strings.TrimSpace(stderr.String()))
	}

	// OSD output is written to stderr by some tesseract builds.
	out := stdout.String() + stderr.String()
	match := osdRotateRe.FindStringSubmatch(out)
	if match == nil {
		return 0, fmt.Errorf("orientation detection produced no rotation estimate")
	}

	angle, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse rotation estimate: %w", err)
	}
	return angle, nil
}

func writeTempPNG(img image.Image) (string, func(), error) {
	dir, err := os.MkdirTemp("", "ocr-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, "page.png")
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("create temp image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp image: %w", err)
	}
	return path, cleanup, nil
}
