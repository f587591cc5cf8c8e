package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

var whitespace = regexp.MustCompile(`\s+`)

const blockElements = "p, div, br, li, td, tr, h1, h2, h3, h4, h5, h6, blockquote, pre, article, section"

// Extract pulls the readable text out of an HTML document. When selectors are
// given, only the matching elements are kept; otherwise the main article is
// located with readability, falling back to the whole body.
func Extract(rawHTML string, pageURL *url.URL, selectors []string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	page := &Page{
		URL:   pageURL.String(),
		Title: normalizeText(doc.Find("title").First().Text()),
	}

	if len(selectors) > 0 {
		var parts []string
		for _, selector := range selectors {
			doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
				if text := selectionText(s); text != "" {
					parts = append(parts, text)
				}
			})
		}
		if len(parts) > 0 {
			page.Text = strings.Join(parts, "\n")
			return page, nil
		}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL)
	if err == nil && article.Content != "" {
		articleDoc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
		if err == nil {
			page.Text = selectionText(articleDoc.Selection)
		}
		if article.Title != "" {
			page.Title = normalizeText(article.Title)
		}
	}

	if page.Text == "" {
		doc.Find("script, style, noscript").Remove()
		page.Text = selectionText(doc.Find("body"))
	}
	return page, nil
}

// selectionText keeps words from adjacent block elements apart before flattening
func selectionText(s *goquery.Selection) string {
	s.Find(blockElements).Each(func(_ int, block *goquery.Selection) {
		block.AppendHtml(" ")
	})
	return normalizeText(s.Text())
}

func normalizeText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
