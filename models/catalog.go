package models

// Hairstyle is a static overlay offered to users of the matching gender.
type Hairstyle struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Gender   Gender  `json:"gender"`
	OffsetY  float64 `json:"offset_y"` // alignment tweak, fraction of head height
	Scale    float64 `json:"scale"`
}

// Garment is a preset garment image the user can pick instead of uploading one.
type Garment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// AIRecommendation is the fit score and advice returned for a composite.
type AIRecommendation struct {
	Score    float64 `bson:"score" json:"score"`
	Feedback string  `bson:"feedback" json:"feedback"`
}
