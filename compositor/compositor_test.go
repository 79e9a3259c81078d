package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raushankrgupta/fashionfit/landmarks"
)

var (
	blue  = color.RGBA{0, 0, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// bodyLandmarks places shoulders at y=0.3 and hips at y=0.6, x from 0.3 to 0.7.
func bodyLandmarks(n int) landmarks.Landmarks {
	pose := make([]landmarks.Point, n)
	set := func(id landmarks.PoseID, p landmarks.Point) {
		if int(id) < n {
			pose[id] = p
		}
	}
	set(landmarks.PoseLeftShoulder, landmarks.Point{X: 0.3, Y: 0.3})
	set(landmarks.PoseRightShoulder, landmarks.Point{X: 0.7, Y: 0.3})
	set(landmarks.PoseLeftHip, landmarks.Point{X: 0.3, Y: 0.6})
	set(landmarks.PoseRightHip, landmarks.Point{X: 0.7, Y: 0.6})
	return landmarks.Landmarks{Pose: pose}
}

func faceLandmarks() []landmarks.Point {
	face := make([]landmarks.Point, 468)
	face[landmarks.FaceForehead] = landmarks.Point{X: 0.5, Y: 0.2}
	face[landmarks.FaceChin] = landmarks.Point{X: 0.5, Y: 0.4}
	face[landmarks.FaceLeftEdge] = landmarks.Point{X: 0.4, Y: 0.3}
	face[landmarks.FaceRightEdge] = landmarks.Point{X: 0.6, Y: 0.3}
	return face
}

func TestGarmentPlacement_ReferenceGeometry(t *testing.T) {
	g, err := GarmentPlacement(bodyLandmarks(33), 400, 600)
	require.NoError(t, err)

	assert.InDelta(t, 160, g.ShoulderWidth, 1e-6)
	assert.InDelta(t, 180, g.TorsoHeight, 1e-6)
	assert.InDelta(t, 352, g.Rect.W, 1e-6)
	assert.InDelta(t, 450, g.Rect.H, 1e-6)
	assert.InDelta(t, 200, g.Anchor.X, 1e-6)
	assert.InDelta(t, 180, g.Anchor.Y, 1e-6)
	assert.InDelta(t, 24, g.Rect.X, 1e-6)
	assert.InDelta(t, 135, g.Rect.Y, 1e-6)
}

func TestGarmentPlacement_CenteredOnShoulderMidpoint(t *testing.T) {
	cases := []struct {
		ls, rs, lh, rh landmarks.Point
		w, h           int
	}{
		{landmarks.Point{X: 0.2, Y: 0.25}, landmarks.Point{X: 0.6, Y: 0.27}, landmarks.Point{X: 0.25, Y: 0.55}, landmarks.Point{X: 0.55, Y: 0.57}, 640, 480},
		{landmarks.Point{X: 0.7, Y: 0.3}, landmarks.Point{X: 0.35, Y: 0.32}, landmarks.Point{X: 0.65, Y: 0.7}, landmarks.Point{X: 0.4, Y: 0.68}, 1080, 1920},
		{landmarks.Point{X: 0.5, Y: 0.5}, landmarks.Point{X: 0.5, Y: 0.5}, landmarks.Point{X: 0.5, Y: 0.5}, landmarks.Point{X: 0.5, Y: 0.5}, 10, 10},
	}
	for _, tc := range cases {
		pose := make([]landmarks.Point, landmarks.MinPosePoints)
		pose[landmarks.PoseLeftShoulder] = tc.ls
		pose[landmarks.PoseRightShoulder] = tc.rs
		pose[landmarks.PoseLeftHip] = tc.lh
		pose[landmarks.PoseRightHip] = tc.rh

		g, err := GarmentPlacement(landmarks.Landmarks{Pose: pose}, tc.w, tc.h)
		require.NoError(t, err)

		midX := (tc.ls.X + tc.rs.X) / 2 * float64(tc.w)
		assert.InDelta(t, midX, g.Rect.Center().X, 1e-6)
		assert.InDelta(t, midX, g.Anchor.X, 1e-6)

		px := g.Rect.Pixels()
		assert.InDelta(t, midX, float64(px.Min.X+px.Max.X)/2, 1)
	}
}

func TestGarmentPlacement_RequiresHips(t *testing.T) {
	_, err := GarmentPlacement(bodyLandmarks(13), 400, 600)
	assert.ErrorIs(t, err, landmarks.ErrLandmarkOutOfRange)
}

func TestHairPlacement(t *testing.T) {
	g, err := HairPlacement(landmarks.Landmarks{Face: faceLandmarks()}, 400, 600)
	require.NoError(t, err)

	assert.InDelta(t, 80, g.FaceWidth, 1e-6)
	assert.InDelta(t, 120, g.HeadHeight, 1e-6)
	assert.InDelta(t, 144, g.Rect.W, 1e-6)
	assert.InDelta(t, 216, g.Rect.H, 1e-6)
	assert.InDelta(t, 128, g.Rect.X, 1e-6)
	assert.InDelta(t, 120-216*0.4, g.Rect.Y, 1e-6)
}

func TestComposite_ShortPoseLeavesBaseUntouched(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for i := range base.Pix {
		base.Pix[i] = uint8(i % 251)
	}
	garment := solid(10, 10, red)

	for n := 0; n < 13; n++ {
		out, report := Composite(base, garment, nil, bodyLandmarks(n))
		assert.Equal(t, base.Pix, out.Pix, "pose length %d", n)
		assert.False(t, report.Garment.Drawn)
		assert.Equal(t, ReasonNoLandmarks, report.Garment.Reason)
	}
}

func TestComposite_ShouldersWithoutHipsSkipsGarment(t *testing.T) {
	base := solid(40, 60, blue)
	out, report := Composite(base, solid(5, 5, red), nil, bodyLandmarks(20))

	assert.Equal(t, base.Pix, out.Pix)
	assert.False(t, report.Garment.Drawn)
}

func TestComposite_DrawsGarmentWithOpacity(t *testing.T) {
	base := solid(400, 600, blue)
	out, report := Composite(base, solid(50, 80, red), nil, bodyLandmarks(33))

	require.True(t, report.Garment.Drawn)
	assert.Equal(t, image.Rect(24, 135, 376, 585), report.Garment.Bounds)

	inside := out.RGBAAt(200, 300)
	assert.Greater(t, inside.R, uint8(230))
	assert.Less(t, inside.B, uint8(25))
	assert.NotZero(t, inside.B, "garment must stay slightly translucent")

	assert.Equal(t, blue, out.RGBAAt(5, 5))
	assert.Equal(t, blue, out.RGBAAt(200, 595))

	assert.False(t, report.Hair.Drawn)
	assert.Equal(t, ReasonNoImage, report.Hair.Reason)
}

func TestComposite_DrawsHair(t *testing.T) {
	base := solid(400, 600, blue)
	lm := landmarks.Landmarks{Face: faceLandmarks()}

	out, report := Composite(base, nil, solid(20, 20, green), lm)

	require.True(t, report.Hair.Drawn)
	assert.Equal(t, green, out.RGBAAt(200, 100))
	assert.Equal(t, blue, out.RGBAAt(10, 10))
	assert.Equal(t, ReasonNoImage, report.Garment.Reason)
}

func TestComposite_HairSkippedWithoutFace(t *testing.T) {
	base := solid(40, 40, blue)
	out, report := Composite(base, nil, solid(4, 4, green), landmarks.Landmarks{Face: faceLandmarks()[:100]})

	assert.Equal(t, base.Pix, out.Pix)
	assert.Equal(t, ReasonNoLandmarks, report.Hair.Reason)
}

func TestComposite_OffsetBaseBounds(t *testing.T) {
	big := solid(20, 20, blue)
	sub := big.SubImage(image.Rect(5, 5, 15, 15))

	out, _ := Composite(sub, nil, nil, landmarks.Landmarks{})
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds())
	assert.Equal(t, blue, out.RGBAAt(0, 0))
}

func TestComposite_ZeroSizeAndOutside(t *testing.T) {
	base := solid(40, 40, blue)

	// Collapsed shoulders give a zero-width garment.
	lm := bodyLandmarks(25)
	lm.Pose[landmarks.PoseRightShoulder] = lm.Pose[landmarks.PoseLeftShoulder]
	_, report := Composite(base, solid(2, 2, red), nil, lm)
	assert.Equal(t, ReasonEmptyArea, report.Garment.Reason)

	far := bodyLandmarks(25)
	for i := range far.Pose {
		far.Pose[i].X += 10
	}
	_, report = Composite(base, solid(2, 2, red), nil, far)
	assert.Equal(t, ReasonOutsidePhoto, report.Garment.Reason)
}

func TestEncodePNG_RoundTripsSize(t *testing.T) {
	data, err := EncodePNG(solid(7, 9, red))
	require.NoError(t, err)

	img, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 7, 9), img.Bounds())
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(4, 4, red), nil))
	_, format, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, _, err = Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestDecode_TooLarge(t *testing.T) {
	// Rejected from the header alone, before the pixels are decoded.
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8000, 8000))))

	_, _, err := Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
