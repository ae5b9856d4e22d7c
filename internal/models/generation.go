package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SlideshowGeneration is one persisted batch run. Rows are inserted once
// when a run completes and never updated.
type SlideshowGeneration struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
	Settings   datatypes.JSON `gorm:"type:jsonb" json:"settings"`
	Slideshows datatypes.JSON `gorm:"type:jsonb" json:"slideshows"`
}

// NewSlideshowGeneration builds a persistable record from a completed run.
func NewSlideshowGeneration(settings GenerationSettings, slideshows []Slideshow) (*SlideshowGeneration, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshaling settings: %w", err)
	}
	slideshowsJSON, err := json.Marshal(slideshows)
	if err != nil {
		return nil, fmt.Errorf("marshaling slideshows: %w", err)
	}
	return &SlideshowGeneration{
		ID:         uuid.New(),
		CreatedAt:  time.Now(),
		Settings:   datatypes.JSON(settingsJSON),
		Slideshows: datatypes.JSON(slideshowsJSON),
	}, nil
}

// DecodeSlideshows unpacks the JSONB slideshow column.
func (g *SlideshowGeneration) DecodeSlideshows() ([]Slideshow, error) {
	var out []Slideshow
	if err := json.Unmarshal(g.Slideshows, &out); err != nil {
		return nil, fmt.Errorf("decoding slideshows: %w", err)
	}
	return out, nil
}
