package reddit

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML extracts whitespace-collapsed plain text, dropping scripts and styles.
func CleanHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc.Find("script, style").Remove()

	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			if text := strings.TrimSpace(node.Text()); text != "" {
				*parts = append(*parts, text)
			}
			return
		}
		collectText(node, parts)
	})
}
