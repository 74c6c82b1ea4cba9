package ocr

import (
	"context"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

// Preprocessor normalizes image quality ahead of recognition. The pipeline is
// deterministic: the same input image always produces the same output.
type Preprocessor struct {
	// minEdge is the resolution floor: images whose shorter side is below
	// it are upscaled before recognition.
	minEdge int
	engine  Engine
	logger  *logrus.Logger
}

// NewPreprocessor creates a Preprocessor. engine is used only for
// orientation detection during deskew and may be nil to skip that step.
func NewPreprocessor(minEdge int, engine Engine, logger *logrus.Logger) *Preprocessor {
	if minEdge <= 0 {
		minEdge = 1200
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Preprocessor{minEdge: minEdge, engine: engine, logger: logger}
}

// Process runs the full pipeline: flatten, grayscale, upscale, contrast
// stretch, median denoise, Otsu binarization, sharpening and deskew.
func (p *Preprocessor) Process(ctx context.Context, img image.Image) image.Image {
	gray := flattenToGray(img)
	gray = p.upscale(gray)
	gray = autoContrast(gray)
	gray = medianFilter(gray)
	gray = otsuBinarize(gray)
	gray = unsharpMask(gray)
	return p.deskew(ctx, gray)
}

// flattenToGray composites any transparency onto a white background and
// converts to single-channel grayscale in one pass.
func flattenToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			// Alpha-blend over white. Channels are alpha-premultiplied
			// 16-bit, so the white contribution is (0xffff - a).
			rf := float64(r) + float64(0xffff-a)
			gf := float64(g) + float64(0xffff-a)
			bf := float64(b) + float64(0xffff-a)
			lum := (0.299*rf + 0.587*gf + 0.114*bf) / 257.0
			out.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: clampByte(lum)})
		}
	}
	return out
}

func (p *Preprocessor) upscale(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	shorter := w
	if h < shorter {
		shorter = h
	}
	if shorter == 0 || shorter >= p.minEdge {
		return img
	}

	scale := float64(p.minEdge) / float64(shorter)
	out := image.NewGray(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, bounds, xdraw.Over, nil)
	return out
}

// autoContrast linearly stretches the intensity range to the full 0..255 span.
func autoContrast(img *image.Gray) *image.Gray {
	min, max := uint8(255), uint8(0)
	for _, v := range img.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min >= max {
		return img
	}

	out := image.NewGray(img.Bounds())
	span := float64(max - min)
	for i, v := range img.Pix {
		out.Pix[i] = clampByte(float64(v-min) * 255.0 / span)
	}
	return out
}

// medianFilter applies a 3x3 median to remove speckle noise. Border pixels
// are copied unchanged.
func medianFilter(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return img
	}

	out := image.NewGray(bounds)
	copy(out.Pix, img.Pix)

	window := make([]uint8, 9)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[i] = img.GrayAt(x+dx, y+dy).Y
					i++
				}
			}
			sort.Slice(window, func(a, b int) bool { return window[a] < window[b] })
			out.SetGray(x, y, color.Gray{Y: window[4]})
		}
	}
	return out
}

// otsuThreshold computes the intensity threshold maximizing inter-class
// variance over the 256-bin histogram.
func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	for _, v := range img.Pix {
		hist[v]++
	}
	total := len(img.Pix)
	if total == 0 {
		return 128
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var sumBelow float64
	var weightBelow int
	bestThreshold, bestVariance := uint8(0), -1.0

	for t := 0; t < 256; t++ {
		weightBelow += hist[t]
		if weightBelow == 0 {
			continue
		}
		weightAbove := total - weightBelow
		if weightAbove == 0 {
			break
		}
		sumBelow += float64(t) * float64(hist[t])

		meanBelow := sumBelow / float64(weightBelow)
		meanAbove := (sumAll - sumBelow) / float64(weightAbove)
		diff := meanBelow - meanAbove
		variance := float64(weightBelow) * float64(weightAbove) * diff * diff

		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = uint8(t)
		}
	}
	return bestThreshold
}

// otsuBinarize thresholds the image to pure black and white, then inverts if
// black dominates so text always renders dark on a light background.
func otsuBinarize(img *image.Gray) *image.Gray {
	threshold := otsuThreshold(img)

	out := image.NewGray(img.Bounds())
	blackCount := 0
	for i, v := range img.Pix {
		if v > threshold {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
			blackCount++
		}
	}

	if blackCount > len(out.Pix)-blackCount {
		for i, v := range out.Pix {
			out.Pix[i] = 255 - v
		}
	}
	return out
}

// unsharpMask sharpens glyph edges: out = orig + amount * (orig - blurred),
// with a 3x3 box blur as the low-pass source.
func unsharpMask(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return img
	}
	const amount = 0.5

	out := image.NewGray(bounds)
	copy(out.Pix, img.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			sum := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += int(img.GrayAt(x+dx, y+dy).Y)
				}
			}
			blurred := float64(sum) / 9.0
			orig := float64(img.GrayAt(x, y).Y)
			out.SetGray(x, y, color.Gray{Y: clampByte(orig + amount*(orig-blurred))})
		}
	}
	return out
}

// deskew queries the recognition engine's orientation detection and rotates
// the image upright when the detected angle exceeds half a degree. Detection
// failures are swallowed: a skipped rotation never fails the pipeline.
func (p *Preprocessor) deskew(ctx context.Context, img *image.Gray) image.Image {
	if p.engine == nil {
		return img
	}

	angle, err := p.engine.DetectOrientation(ctx, img)
	if err != nil {
		p.logger.WithError(err).Debug("Orientation detection failed, skipping deskew")
		return img
	}
	if math.Abs(angle) <= 0.5 {
		return img
	}

	p.logger.WithField("angle", angle).Debug("Deskewing image")
	return rotate(img, angle)
}

// rotate rotates the image clockwise by the given angle in degrees, expanding
// the canvas to avoid cropping and filling uncovered pixels with white.
func rotate(img *image.Gray, degrees float64) *image.Gray {
	theta := degrees * math.Pi / 180.0
	sin, cos := math.Sin(theta), math.Cos(theta)

	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	newW := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin)))
	newH := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos)))

	out := image.NewGray(image.Rect(0, 0, newW, newH))
	for i := range out.Pix {
		out.Pix[i] = 255
	}

	cx, cy := w/2.0, h/2.0
	ncx, ncy := float64(newW)/2.0, float64(newH)/2.0

	// Inverse mapping: for each destination pixel, sample the source.
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			dx, dy := float64(x)-ncx, float64(y)-ncy
			sx := dx*cos - dy*sin + cx
			sy := dx*sin + dy*cos + cy
			isx, isy := int(math.Round(sx)), int(math.Round(sy))
			if isx >= 0 && isx < bounds.Dx() && isy >= 0 && isy < bounds.Dy() {
				out.SetGray(x, y, img.GrayAt(isx, isy))
			}
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
