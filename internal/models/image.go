// internal/models/image.go
package models

type ImageRecord struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Title        string `json:"title,omitempty"`
	Source       string `json:"source,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}
