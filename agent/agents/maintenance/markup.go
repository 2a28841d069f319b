package maintenance

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	anchorPattern = regexp.MustCompile(`(?is)<a\b[^>]*>.*?</a\s*>`)
	// sentence ends: terminal punctuation followed by space, line breaks, block closers
	sentenceEndPattern = regexp.MustCompile(`(?i)[.!?。]+(?:\s|$)|\n|</p\s*>|</li\s*>|</h[1-6]\s*>|<br\s*/?>`)
)

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// htmlBody indexes a post body so text matches can be placed back into the
// raw markup.
type htmlBody struct {
	raw       string
	tags      []span
	anchors   []span
	sentences []int
}

func parseBody(raw string) htmlBody {
	b := htmlBody{raw: raw}
	for _, loc := range tagPattern.FindAllStringIndex(raw, -1) {
		b.tags = append(b.tags, span{loc[0], loc[1]})
	}
	for _, loc := range anchorPattern.FindAllStringIndex(raw, -1) {
		b.anchors = append(b.anchors, span{loc[0], loc[1]})
	}
	for _, loc := range sentenceEndPattern.FindAllStringIndex(raw, -1) {
		b.sentences = append(b.sentences, loc[1])
	}
	return b
}

// inMarkup reports whether [start,end) touches a tag.
func (b htmlBody) inMarkup(start, end int) bool {
	return overlapsAny(b.tags, span{start, end})
}

// inAnchor reports whether [start,end) touches an existing link.
func (b htmlBody) inAnchor(start, end int) bool {
	return overlapsAny(b.anchors, span{start, end})
}

// sentence returns the index of the sentence containing byte offset pos.
func (b htmlBody) sentence(pos int) int {
	return sort.Search(len(b.sentences), func(i int) bool { return b.sentences[i] > pos })
}

func overlapsAny(spans []span, s span) bool {
	for _, o := range spans {
		if o.overlaps(s) {
			return true
		}
	}
	return false
}

// countLinks counts anchors with an href in rendered HTML.
func countLinks(raw string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return 0, err
	}
	n := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, _ := s.Attr("href"); strings.TrimSpace(href) != "" {
			n++
		}
	})
	return n, nil
}
