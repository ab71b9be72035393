package prepare

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/common"
	"github.com/joseph-ayodele/doccapture/internal/quality"
)

// Preset parameters: maximum output width and JPEG quality factor.
type presetParams struct {
	maxWidth int
	quality  float64
}

var presets = map[constants.QualityPreset]presetParams{
	constants.PresetLow:    {maxWidth: 1200, quality: 0.6},
	constants.PresetMedium: {maxWidth: 1800, quality: 0.75},
	constants.PresetHigh:   {maxWidth: 2400, quality: 0.9},
}

// Options selects the optional transforms for one Prepare run.
type Options struct {
	// Edges, when present, wins over Crop: the image is cropped to the
	// bounding box of the detected quadrilateral.
	Edges *quality.EdgePoints
	// Crop is an explicit crop rectangle, applied only when Edges is nil.
	Crop *image.Rectangle
	// RotateDegrees rotates by the given angle. Only multiples of 90 are
	// exact; anything else is a no-op.
	RotateDegrees int
}

// Prepared is the pipeline output: encoded bytes plus final dimensions.
type Prepared struct {
	Data   []byte
	Width  int
	Height int
}

// Preparer runs the fixed-order normalize pipeline:
// crop -> rotate -> resize -> compress. Cropping before resizing avoids
// upscaling artifacts; compression is always last so the image is only
// re-encoded once.
type Preparer struct {
	preset constants.QualityPreset
	logger *slog.Logger
}

func NewPreparer(preset constants.QualityPreset, logger *slog.Logger) (*Preparer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := presets[preset]; !ok {
		return nil, common.NewAppError("PREPARE_ERROR",
			fmt.Sprintf("unknown quality preset %q", preset), common.ErrInvalidInput)
	}
	return &Preparer{preset: preset, logger: logger}, nil
}

// Prepare applies the full pipeline to img.
func (p *Preparer) Prepare(img image.Image, opts Options) (Prepared, error) {
	start := time.Now()
	params := presets[p.preset]

	out := img
	switch {
	case opts.Edges != nil:
		out = CropToQuad(out, *opts.Edges)
	case opts.Crop != nil:
		out = Crop(out, *opts.Crop)
	}
	out = Rotate(out, opts.RotateDegrees)
	out = Resize(out, params.maxWidth)

	data, err := Compress(out, params.quality)
	if err != nil {
		return Prepared{}, common.WrapError(err, "compress image")
	}

	b := out.Bounds()
	p.logger.Debug("prepare.ok",
		"preset", string(p.preset),
		"width", b.Dx(),
		"height", b.Dy(),
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Prepared{Data: data, Width: b.Dx(), Height: b.Dy()}, nil
}

// Crop returns the subimage covered by rect, clamped to the image bounds.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, rect.Min, xdraw.Src)
	return dst
}

// CropToQuad crops to the axis-aligned bounding box of a detected
// document quadrilateral.
func CropToQuad(img image.Image, edges quality.EdgePoints) image.Image {
	pts := []quality.Point{edges.TopLeft, edges.TopRight, edges.BottomRight, edges.BottomLeft}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, pt := range pts {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxX = math.Max(maxX, pt.X)
		maxY = math.Max(maxY, pt.Y)
	}
	rect := image.Rect(int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	return Crop(img, rect)
}

// Rotate rotates by deg counterclockwise. Only multiples of 90 are exact
// rotations; other angles leave the image unchanged.
func Rotate(img image.Image, deg int) image.Image {
	deg = ((deg % 360) + 360) % 360
	if deg == 0 || deg%90 != 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if deg == 180 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	src := toRGBA(img)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch deg {
			case 90:
				dst.SetRGBA(y, w-1-x, c)
			case 180:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case 270:
				dst.SetRGBA(h-1-y, x, c)
			}
		}
	}
	return dst
}

// Resize scales down to maxWidth, preserving aspect ratio. Images already
// at or below maxWidth pass through untouched (never upscale).
func Resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth {
		return img
	}
	scale := float64(maxWidth) / float64(b.Dx())
	h := int(math.Round(float64(b.Dy()) * scale))
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Compress encodes as JPEG at a [0,1] quality factor.
func Compress(img image.Image, quality float64) ([]byte, error) {
	if quality <= 0 || quality > 1 {
		return nil, common.NewAppError("PREPARE_ERROR",
			fmt.Sprintf("quality factor %v out of (0,1]", quality), common.ErrInvalidInput)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(math.Round(quality * 100))}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	xdraw.Draw(dst, b, img, b.Min, xdraw.Src)
	return dst
}
