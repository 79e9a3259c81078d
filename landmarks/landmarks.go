// Package landmarks holds body pose and face mesh points produced by an external
// detector. Callers read points through named identifiers; raw indices stay
// inside this package.
package landmarks

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrLandmarkOutOfRange is matched by every RangeError.
var ErrLandmarkOutOfRange = errors.New("landmark out of range")

// ErrInvalidLandmarks is returned by Parse for payloads that are not usable point data.
var ErrInvalidLandmarks = errors.New("invalid landmarks")

// Point is a normalized coordinate: x and y in [0,1] relative to the image, z optional depth.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// PoseID names a point of the pose sequence.
type PoseID int

const (
	PoseLeftShoulder  PoseID = 11
	PoseRightShoulder PoseID = 12
	PoseLeftHip       PoseID = 23
	PoseRightHip      PoseID = 24
)

// FaceID names a point of the face mesh.
type FaceID int

const (
	FaceForehead  FaceID = 10
	FaceChin      FaceID = 152
	FaceLeftEdge  FaceID = 234
	FaceRightEdge FaceID = 454
)

// Minimum sequence lengths for the garment and hairstyle overlays.
const (
	MinPosePoints = int(PoseRightHip) + 1
	MinFacePoints = int(FaceRightEdge) + 1
)

// RangeError reports a named landmark missing from a short sequence.
type RangeError struct {
	Sequence string
	Index    int
	Len      int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s landmark %d out of range (sequence has %d points)", e.Sequence, e.Index, e.Len)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrLandmarkOutOfRange
}

// Landmarks is the detector output for one image.
type Landmarks struct {
	Pose []Point `json:"pose"`
	Face []Point `json:"face"`
}

// Empty reports whether the detector found nothing at all.
func (l Landmarks) Empty() bool {
	return len(l.Pose) == 0 && len(l.Face) == 0
}

func (l Landmarks) PosePoint(id PoseID) (Point, error) {
	if int(id) < 0 || int(id) >= len(l.Pose) {
		return Point{}, &RangeError{Sequence: "pose", Index: int(id), Len: len(l.Pose)}
	}
	return l.Pose[id], nil
}

func (l Landmarks) FacePoint(id FaceID) (Point, error) {
	if int(id) < 0 || int(id) >= len(l.Face) {
		return Point{}, &RangeError{Sequence: "face", Index: int(id), Len: len(l.Face)}
	}
	return l.Face[id], nil
}

// Shoulders returns the left and right shoulder points.
func (l Landmarks) Shoulders() (left, right Point, err error) {
	return l.posePair(PoseLeftShoulder, PoseRightShoulder)
}

// Hips returns the left and right hip points.
func (l Landmarks) Hips() (left, right Point, err error) {
	return l.posePair(PoseLeftHip, PoseRightHip)
}

// FaceWidthExtremes returns the two mesh points spanning the face horizontally.
func (l Landmarks) FaceWidthExtremes() (left, right Point, err error) {
	if left, err = l.FacePoint(FaceLeftEdge); err != nil {
		return Point{}, Point{}, err
	}
	if right, err = l.FacePoint(FaceRightEdge); err != nil {
		return Point{}, Point{}, err
	}
	return left, right, nil
}

func (l Landmarks) Forehead() (Point, error) { return l.FacePoint(FaceForehead) }

func (l Landmarks) Chin() (Point, error) { return l.FacePoint(FaceChin) }

func (l Landmarks) posePair(a, b PoseID) (Point, Point, error) {
	pa, err := l.PosePoint(a)
	if err != nil {
		return Point{}, Point{}, err
	}
	pb, err := l.PosePoint(b)
	if err != nil {
		return Point{}, Point{}, err
	}
	return pa, pb, nil
}

// Parse decodes landmarks supplied as JSON ({"pose":[...],"face":[...]}).
// Coordinates must be finite; an empty body yields empty landmarks.
func Parse(data []byte) (Landmarks, error) {
	var lm Landmarks
	if len(data) == 0 {
		return lm, nil
	}
	if err := json.Unmarshal(data, &lm); err != nil {
		return Landmarks{}, fmt.Errorf("%w: %v", ErrInvalidLandmarks, err)
	}
	if err := lm.Validate(); err != nil {
		return Landmarks{}, err
	}
	return lm, nil
}

// Validate rejects NaN and infinite coordinates.
func (l Landmarks) Validate() error {
	check := func(name string, pts []Point) error {
		for i, p := range pts {
			if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
				return fmt.Errorf("%w: %s point %d is not finite", ErrInvalidLandmarks, name, i)
			}
		}
		return nil
	}
	if err := check("pose", l.Pose); err != nil {
		return err
	}
	return check("face", l.Face)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
