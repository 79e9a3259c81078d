// Package catalog holds the static hairstyle catalog and the preset garments.
package catalog

import (
	"errors"
	"net/url"
	"strings"

	"github.com/raushankrgupta/fashionfit/models"
)

var ErrUnknownHairstyle = errors.New("unknown hairstyle")

var hairstyles = []models.Hairstyle{
	{ID: "m1", Name: "Short Fade", Gender: models.GenderMale, ImageURL: "https://images.unsplash.com/photo-1599566150163-29194dcaad36?auto=format&fit=crop&w=200&h=200", OffsetY: -0.1, Scale: 1.2},
	{ID: "m2", Name: "Man Bun", Gender: models.GenderMale, ImageURL: "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?auto=format&fit=crop&w=200&h=200", OffsetY: -0.15, Scale: 1.3},
	{ID: "f1", Name: "Beach Waves", Gender: models.GenderFemale, ImageURL: "https://images.unsplash.com/photo-1580618672591-eb180b1a973f?auto=format&fit=crop&w=200&h=200", OffsetY: -0.05, Scale: 1.4},
	{ID: "f2", Name: "Elegant Bob", Gender: models.GenderFemale, ImageURL: "https://images.unsplash.com/photo-1494790108377-be9c29b29330?auto=format&fit=crop&w=200&h=200", OffsetY: -0.1, Scale: 1.1},
	{ID: "f3", Name: "Long Straight", Gender: models.GenderFemale, ImageURL: "https://images.unsplash.com/photo-1519699047748-de8e457a634e?auto=format&fit=crop&w=200&h=200", OffsetY: -0.05, Scale: 1.5},
}

var presetNames = []string{"Red Gown", "Blue Shirt", "Black Tux", "Summer Dress"}

// Hairstyles returns the whole catalog.
func Hairstyles() []models.Hairstyle {
	return append([]models.Hairstyle(nil), hairstyles...)
}

// ForGender returns the hairstyles offered to a user. Users without a gender get none.
func ForGender(g models.Gender) []models.Hairstyle {
	out := []models.Hairstyle{}
	for _, h := range hairstyles {
		if h.Gender == g {
			out = append(out, h)
		}
	}
	return out
}

func Hairstyle(id string) (models.Hairstyle, error) {
	for _, h := range hairstyles {
		if h.ID == id {
			return h, nil
		}
	}
	return models.Hairstyle{}, ErrUnknownHairstyle
}

// Garments lists the preset garment images.
func Garments() []models.Garment {
	out := make([]models.Garment, 0, len(presetNames))
	for _, name := range presetNames {
		out = append(out, models.Garment{
			ID:       strings.ToLower(strings.ReplaceAll(name, " ", "-")),
			Name:     name,
			ImageURL: "https://picsum.photos/400/600?random=" + url.QueryEscape(name),
		})
	}
	return out
}
