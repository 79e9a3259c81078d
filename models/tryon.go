package models

import "errors"

// ErrMissingImage is returned when a try-on lacks the user photo or garment reference.
var ErrMissingImage = errors.New("try-on requires user image and dress image")

// TryOnSession is one persisted try-on attempt. Records are never modified after creation.
type TryOnSession struct {
	ID             string            `bson:"_id" json:"id"`
	UserID         string            `bson:"user_id" json:"user_id"`
	UserImageURL   string            `bson:"user_image_url" json:"user_image_url"`
	DressImageURL  string            `bson:"dress_image_url" json:"dress_image_url"`
	HairstyleID    string            `bson:"hairstyle_id,omitempty" json:"hairstyle_id,omitempty"`
	MergedImageURL string            `bson:"merged_image_url,omitempty" json:"merged_image_url,omitempty"`
	Recommendation *AIRecommendation `bson:"recommendation,omitempty" json:"recommendation,omitempty"`
	Timestamp      int64             `bson:"timestamp" json:"timestamp"` // unix millis
}

// NewTryOn is a try-on session before the store assigns its ID and timestamp.
type NewTryOn struct {
	UserID         string
	UserImageURL   string
	DressImageURL  string
	HairstyleID    string
	MergedImageURL string
	Recommendation *AIRecommendation
}

// Validate checks the creation invariant.
func (n NewTryOn) Validate() error {
	if n.UserImageURL == "" || n.DressImageURL == "" {
		return ErrMissingImage
	}
	return nil
}

// Session builds the stored record.
func (n NewTryOn) Session(id string, timestamp int64) TryOnSession {
	return TryOnSession{
		ID:             id,
		UserID:         n.UserID,
		UserImageURL:   n.UserImageURL,
		DressImageURL:  n.DressImageURL,
		HairstyleID:    n.HairstyleID,
		MergedImageURL: n.MergedImageURL,
		Recommendation: n.Recommendation,
		Timestamp:      timestamp,
	}
}
