package extraction

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ternarybob/tubefetch/internal/models"
)

// QualityBest requests the highest resolution available
const QualityBest = "best"

const (
	defaultFormatSort  = "res,ext:mp4:m4a"
	defaultMergeFormat = "mp4"
	maxHeight          = 4320
)

// ParseQuality normalises "best", "720" or "720p". An empty value means best.
func ParseQuality(quality string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(quality))
	if q == "" || q == QualityBest {
		return QualityBest, nil
	}

	height, err := strconv.Atoi(strings.TrimSuffix(q, "p"))
	if err != nil || height <= 0 || height > maxHeight {
		return "", models.NewValidationError("quality", "unsupported quality %q", quality)
	}
	return strconv.Itoa(height), nil
}

// FormatSelector builds the engine's format expression.
// Separate mp4 video and m4a audio streams are preferred, then a single mp4 file,
// then anything; a height constraint applies to every alternative but the last.
func FormatSelector(quality string) string {
	q, err := ParseQuality(quality)
	if err != nil || q == QualityBest {
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	}

	return fmt.Sprintf(
		"bestvideo[height<=%[1]s][ext=mp4]+bestaudio[ext=m4a]/best[height<=%[1]s][ext=mp4]/best[height<=%[1]s]/best",
		q,
	)
}
