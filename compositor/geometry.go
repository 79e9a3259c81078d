package compositor

import (
	"image"
	"math"

	"github.com/raushankrgupta/fashionfit/landmarks"
)

// Alignment factors for the overlays.
const (
	GarmentWidthScale  = 2.2
	GarmentHeightScale = 2.5
	GarmentLift        = 0.1 // fraction of garment height drawn above the shoulder line
	GarmentOpacity     = 0.95

	HairScale = 1.8
	HairLift  = 0.4 // fraction of hairstyle height drawn above the forehead
)

// Vec is a point in pixel space.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a draw rectangle in pixel space before rounding.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Center() Vec {
	return Vec{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Pixels rounds the rectangle edges to the nearest pixel.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)), int(math.Round(r.Y+r.H)),
	)
}

// GarmentGeometry is where the garment goes on a photo of a given size.
type GarmentGeometry struct {
	Anchor        Vec     `json:"anchor"` // shoulder midpoint
	ShoulderWidth float64 `json:"shoulder_width"`
	TorsoHeight   float64 `json:"torso_height"`
	Rect          Rect    `json:"rect"`
}

// HairGeometry is where the hairstyle goes on a photo of a given size.
type HairGeometry struct {
	Anchor     Vec     `json:"anchor"` // forehead point
	FaceWidth  float64 `json:"face_width"`
	HeadHeight float64 `json:"head_height"`
	Rect       Rect    `json:"rect"`
}

// GarmentPlacement aligns the garment to the shoulders and hips. It fails with
// landmarks.ErrLandmarkOutOfRange unless the pose has all four points.
func GarmentPlacement(lm landmarks.Landmarks, width, height int) (GarmentGeometry, error) {
	ls, rs, err := lm.Shoulders()
	if err != nil {
		return GarmentGeometry{}, err
	}
	lh, rh, err := lm.Hips()
	if err != nil {
		return GarmentGeometry{}, err
	}

	w, h := float64(width), float64(height)
	shoulderY := (ls.Y + rs.Y) / 2
	hipY := (lh.Y + rh.Y) / 2

	g := GarmentGeometry{
		Anchor:        Vec{X: (ls.X + rs.X) / 2 * w, Y: shoulderY * h},
		ShoulderWidth: math.Abs(rs.X-ls.X) * w,
		TorsoHeight:   math.Abs(hipY-shoulderY) * h,
	}
	dw := g.ShoulderWidth * GarmentWidthScale
	dh := g.TorsoHeight * GarmentHeightScale
	g.Rect = Rect{X: g.Anchor.X - dw/2, Y: g.Anchor.Y - dh*GarmentLift, W: dw, H: dh}
	return g, nil
}

// HairPlacement aligns the hairstyle to the forehead, chin and face width.
func HairPlacement(lm landmarks.Landmarks, width, height int) (HairGeometry, error) {
	top, err := lm.Forehead()
	if err != nil {
		return HairGeometry{}, err
	}
	chin, err := lm.Chin()
	if err != nil {
		return HairGeometry{}, err
	}
	le, re, err := lm.FaceWidthExtremes()
	if err != nil {
		return HairGeometry{}, err
	}

	w, h := float64(width), float64(height)
	g := HairGeometry{
		Anchor:     Vec{X: top.X * w, Y: top.Y * h},
		FaceWidth:  math.Abs(le.X-re.X) * w,
		HeadHeight: math.Abs(chin.Y-top.Y) * h,
	}
	hw := g.FaceWidth * HairScale
	hh := g.HeadHeight * HairScale
	g.Rect = Rect{X: g.Anchor.X - hw/2, Y: g.Anchor.Y - hh*HairLift, W: hw, H: hh}
	return g, nil
}
