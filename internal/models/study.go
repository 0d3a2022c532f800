package models

import "time"

// StudyMaterial is a watermarked lesson item uploaded by an admin. Public
// materials are granted to any requester immediately; everything else goes
// through the admin approval queue.
type StudyMaterial struct {
	MaterialID  string    `bson:"materialId" json:"materialId"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	ImageURL    string    `bson:"imageUrl" json:"imageUrl"`
	VideoURL    string    `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	VideoKey    string    `bson:"videoKey,omitempty" json:"-"`
	Link        string    `bson:"link,omitempty" json:"link,omitempty"`
	Public      bool      `bson:"public" json:"public"`
	Tags        []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
