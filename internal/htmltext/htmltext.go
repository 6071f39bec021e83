// Package htmltext converts HTML email bodies to readable plain text.
package htmltext

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRegex = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex    = regexp.MustCompile(`\n{3,}`)
	// Invisible Unicode characters (zero-width spaces etc.) that mail clients
	// sprinkle into HTML bodies.
	invisibleRegex = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}]+`)
	linkRegex      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// Convert turns an HTML document into clean plain text. Script, style, and
// head content is dropped; block elements become line breaks; links keep
// their target in parentheses.
func Convert(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()

	// Preserve link targets before flattening to text.
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" && text != href {
			s.SetText(text + " (" + href + ")")
		}
	})

	// Block elements become newlines, table cells get a separating space.
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})
	doc.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml(" ")
	})

	text := doc.Text()

	text = invisibleRegex.ReplaceAllString(text, "")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = linkRegex.ReplaceAllString(text, "$1 ($2)")

	// Trim each line and drop the empty ones.
	lines := strings.Split(text, "\n")
	clean := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			clean = append(clean, line)
		}
	}
	text = strings.Join(clean, "\n")

	text = newlineRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
