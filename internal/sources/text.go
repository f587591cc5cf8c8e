package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/azure/mentions-monitor/internal/models"
)

const maxDescription = 300

// plainText flattens an HTML fragment returned by an API to a short description
func plainText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return truncate(strings.Join(strings.Fields(fragment), " "), maxDescription)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return truncate(fragment, maxDescription)
	}
	doc.Find("p, br, li, pre").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return truncate(strings.Join(strings.Fields(doc.Text()), " "), maxDescription)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// deduplicate keeps the first candidate per case-insensitive URL
func deduplicate(candidates []models.Candidate) []models.Candidate {
	seen := make(map[string]bool)
	var unique []models.Candidate

	for _, candidate := range candidates {
		key := strings.ToLower(strings.TrimSpace(candidate.URL))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, candidate)
	}

	return unique
}
