package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner. It is skipped when logs go only to a file,
// since the service is then usually running under a supervisor.
func PrintBanner(config *Config) {
	for _, output := range config.Logging.Output {
		if output == "stdout" || output == "console" {
			banner.PrintSimple("tubefetch", GetVersion())
			return
		}
	}
}
