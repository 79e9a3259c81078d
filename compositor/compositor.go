// Package compositor flattens a garment and an optional hairstyle onto a photo
// using landmark positions.
package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/raushankrgupta/fashionfit/landmarks"
)

// Skip reasons reported for overlays that were not drawn.
const (
	ReasonNoImage      = "no image"
	ReasonNoLandmarks  = "landmarks unavailable"
	ReasonEmptyArea    = "zero-size placement"
	ReasonOutsidePhoto = "placement outside photo"
)

// Overlay describes what happened to one overlay layer.
type Overlay struct {
	Drawn  bool            `json:"drawn"`
	Reason string          `json:"reason,omitempty"`
	Bounds image.Rectangle `json:"bounds"`
}

// Report lists the overlay decisions of a Composite call.
type Report struct {
	Garment Overlay `json:"garment"`
	Hair    Overlay `json:"hair"`
}

// Composite draws base unscaled, then the garment aligned to the pose and the
// hairstyle aligned to the face mesh. Insufficient landmarks skip the affected
// overlay; the photo is always returned.
func Composite(base, garment, hair image.Image, lm landmarks.Landmarks) (*image.RGBA, Report) {
	b := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	var report Report

	switch g, err := GarmentPlacement(lm, b.Dx(), b.Dy()); {
	case garment == nil:
		report.Garment.Reason = ReasonNoImage
	case err != nil:
		report.Garment.Reason = skipReason(err)
	default:
		report.Garment = overlay(out, garment, g.Rect.Pixels(), GarmentOpacity)
	}

	switch h, err := HairPlacement(lm, b.Dx(), b.Dy()); {
	case hair == nil:
		report.Hair.Reason = ReasonNoImage
	case err != nil:
		report.Hair.Reason = skipReason(err)
	default:
		report.Hair = overlay(out, hair, h.Rect.Pixels(), 1)
	}

	return out, report
}

func skipReason(err error) string {
	if errors.Is(err, landmarks.ErrLandmarkOutOfRange) {
		return ReasonNoLandmarks
	}
	return err.Error()
}

// overlay scales src into r and composites it over dst. Only the part of r
// inside dst is rasterized, so oversized placements cost no more than the photo.
func overlay(dst *image.RGBA, src image.Image, r image.Rectangle, opacity float64) Overlay {
	ov := Overlay{Bounds: r}
	if r.Empty() {
		ov.Reason = ReasonEmptyArea
		return ov
	}
	if !r.Overlaps(dst.Bounds()) {
		ov.Reason = ReasonOutsidePhoto
		return ov
	}

	if opacity >= 1 {
		xdraw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), xdraw.Over, nil)
		ov.Drawn = true
		return ov
	}

	layer := image.NewRGBA(dst.Bounds())
	xdraw.ApproxBiLinear.Scale(layer, r, src, src.Bounds(), xdraw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	draw.DrawMask(dst, dst.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Over)
	ov.Drawn = true
	return ov
}

// EncodePNG serializes the composite.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
