package models

import "time"

// Category classifies an uploaded image for the ordering model.
type Category string

const (
	CategoryFace     Category = "face"
	CategoryFaceless Category = "faceless"
	CategoryProduct  Category = "product"
)

// ValidCategory reports whether c is one of the three upload categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryFace, CategoryFaceless, CategoryProduct:
		return true
	}
	return false
}

// UploadedFile represents metadata about an uploaded image.
// Handle is the provider-side object reference (the storage key) that the
// ordering model receives alongside the public URL.
type UploadedFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   Category  `json:"category"`
	Size       int64     `json:"size"`
	URL        string    `json:"url"`
	Handle     string    `json:"handle,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}
