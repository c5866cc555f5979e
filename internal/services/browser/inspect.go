package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengePhrases appear on interstitials shown instead of the requested page
var challengePhrases = []string{
	"sign in to confirm you're not a bot",
	"sign in to confirm you’re not a bot",
	"our systems have detected unusual traffic",
	"i'm not a robot",
}

// PageReport summarises what the warmed page turned out to be
type PageReport struct {
	Title       string
	Challenge   bool // Bot verification interstitial
	ConsentWall bool // Cookie consent form blocking the page
}

// InspectPage parses the rendered document
func InspectPage(html string) (PageReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageReport{}, err
	}

	report := PageReport{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	text := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range challengePhrases {
		if strings.Contains(text, phrase) {
			report.Challenge = true
			break
		}
	}
	if doc.Find("form[action*='recaptcha'], iframe[src*='recaptcha'], #captcha-form").Length() > 0 {
		report.Challenge = true
	}

	report.ConsentWall = doc.Find("form[action*='consent']").Length() > 0

	return report, nil
}
