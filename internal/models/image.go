// Package models defines core data structures for archive entries, image records, and date ranges.
package models

// MediaTypeImage is the archive media kind for still pictures. Anything else
// (usually "video") never reaches the gallery.
const MediaTypeImage = "image"

// ArchiveEntry is one item of the picture-of-the-day archive response.
type ArchiveEntry struct {
	MediaType      string `json:"media_type"`
	URL            string `json:"url"`
	HDURL          string `json:"hdurl,omitempty"`
	Date           string `json:"date"`
	Title          string `json:"title"`
	Explanation    string `json:"explanation"`
	Copyright      string `json:"copyright,omitempty"`
	ServiceVersion string `json:"service_version,omitempty"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
}

// IsImage reports whether the entry is a still picture.
func (e ArchiveEntry) IsImage() bool {
	return e.MediaType == MediaTypeImage
}

// Record maps the entry to the fields the gallery uses.
func (e ArchiveEntry) Record() ImageRecord {
	return ImageRecord{
		URL:         e.URL,
		HDURL:       e.HDURL,
		Date:        e.Date,
		Title:       e.Title,
		Explanation: e.Explanation,
	}
}

// ImageRecord is one fetched picture. HDURL is optional; empty means absent.
type ImageRecord struct {
	URL         string `json:"url"`
	HDURL       string `json:"hdurl,omitempty"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// PreferredSource returns the high-resolution location when present, else the standard one.
func (r ImageRecord) PreferredSource() string {
	if r.HDURL != "" {
		return r.HDURL
	}
	return r.URL
}
