package models

// Slideshow is a themed ordered set of images plus matching captions.
// Images and Captions always have the same length (the configured frame
// count). Fallback is set when either stage substituted deterministic
// placeholder content after an upstream failure.
type Slideshow struct {
	Theme    string   `json:"theme"`
	Images   []string `json:"images"`
	Captions []string `json:"captions"`
	Fallback bool     `json:"fallback,omitempty"`
}

// GenerationSettings holds the inputs of one batch run.
type GenerationSettings struct {
	Themes             []string `json:"themes"`
	SlideshowsPerTheme int      `json:"slideshowsPerTheme"`
	FramesPerSlideshow int      `json:"framesPerSlideshow"`
	OrderingPrompt     string   `json:"orderingPrompt,omitempty"`
	CaptionPrompt      string   `json:"captionPrompt,omitempty"`
	FileIDs            []string `json:"fileIds,omitempty"`
}

// SlideshowCount returns the number of slideshows one run produces.
func (s GenerationSettings) SlideshowCount() int {
	return len(s.Themes) * s.SlideshowsPerTheme
}
