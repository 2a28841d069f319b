package wordpress

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup and decodes entities from a rendered WordPress field.
func PlainText(rendered string) string {
	rendered = strings.TrimSpace(rendered)
	if rendered == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return rendered
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
