package models

// StreamFormat is one format entry reported by the extraction engine
type StreamFormat struct {
	FormatID       string `json:"format_id"`
	Ext            string `json:"ext"`
	Height         int    `json:"height"`
	VCodec         string `json:"vcodec"`
	ACodec         string `json:"acodec"`
	FileSize       int64  `json:"filesize"`
	FileSizeApprox int64  `json:"filesize_approx"`
}

// HasVideo reports whether the format carries a video stream
func (f StreamFormat) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream
func (f StreamFormat) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// Size returns the exact size when known, otherwise the approximation
func (f StreamFormat) Size() int64 {
	if f.FileSize > 0 {
		return f.FileSize
	}
	return f.FileSizeApprox
}

// VideoMetadata is the engine's metadata document for one URL
type VideoMetadata struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Duration   float64        `json:"duration"`
	Thumbnail  string         `json:"thumbnail"`
	Uploader   string         `json:"uploader"`
	WebpageURL string         `json:"webpage_url"`
	Formats    []StreamFormat `json:"formats"`
}

// FormatOption is one selectable quality in the video-info response
type FormatOption struct {
	Quality  string `json:"quality"` // e.g. "720p"
	Height   int    `json:"height"`
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	FileSize int64  `json:"filesize"`
}

// VideoInfo is the summarised metadata returned to API clients
type VideoInfo struct {
	Title     string         `json:"title"`
	Duration  float64        `json:"duration"`
	Thumbnail string         `json:"thumbnail"`
	Uploader  string         `json:"uploader"`
	Formats   []FormatOption `json:"formats"`
	Strategy  string         `json:"strategy,omitempty"` // Attempt that produced the metadata
}
