package downloads

import (
	"sort"
	"strconv"

	"github.com/ternarybob/tubefetch/internal/models"
)

const maxFormatOptions = 10

// Summarise reduces engine metadata to the qualities a client can choose from.
// Only formats carrying both video and audio count; the first format seen for each height wins.
func Summarise(metadata *models.VideoMetadata) *models.VideoInfo {
	info := &models.VideoInfo{
		Title:   "Unknown",
		Formats: []models.FormatOption{},
	}
	if metadata == nil {
		return info
	}

	if metadata.Title != "" {
		info.Title = metadata.Title
	}
	info.Duration = metadata.Duration
	info.Thumbnail = metadata.Thumbnail
	info.Uploader = metadata.Uploader

	seen := make(map[int]bool)
	for _, f := range metadata.Formats {
		if !f.HasVideo() || !f.HasAudio() || f.Height <= 0 || seen[f.Height] {
			continue
		}
		seen[f.Height] = true

		ext := f.Ext
		if ext == "" {
			ext = "mp4"
		}
		info.Formats = append(info.Formats, models.FormatOption{
			Quality:  strconv.Itoa(f.Height) + "p",
			Height:   f.Height,
			FormatID: f.FormatID,
			Ext:      ext,
			FileSize: f.Size(),
		})
	}

	sort.SliceStable(info.Formats, func(i, j int) bool {
		return info.Formats[i].Height > info.Formats[j].Height
	})
	if len(info.Formats) > maxFormatOptions {
		info.Formats = info.Formats[:maxFormatOptions]
	}

	return info
}
