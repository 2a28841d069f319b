package feed

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

const (
	serviceName     = "feed"
	maxFeedBytes    = 4 << 20
	defaultPerFeed  = 20
	defaultUAHeader = "autoblog/1.0"
)

var _ contractx.FeedFetcher = (*Reader)(nil)

// cdata sections are not understood by the HTML parser goquery uses, so they
// are rewritten to escaped text before parsing.
var cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

var dateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "Mon, 2 Jan 2006 15:04:05 -0700", "Mon, 2 Jan 2006 15:04:05 MST"}

type Option func(*Reader)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Reader) {
		if client != nil {
			r.client = client
		}
	}
}

func WithRetryPolicy(p retryx.Policy) Option {
	return func(r *Reader) { r.retry = p }
}

// WithPerFeed caps the number of items kept from each feed.
func WithPerFeed(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.perFeed = n
		}
	}
}

// Reader fetches RSS 2.0 and Atom feeds.
type Reader struct {
	client  *http.Client
	retry   retryx.Policy
	perFeed int
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{
		client:  &http.Client{Timeout: 20 * time.Second},
		retry:   retryx.DefaultPolicy,
		perFeed: defaultPerFeed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Fetch(ctx context.Context, feedURL string) ([]contractx.FeedItem, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("%w: feed url is empty", contractx.ErrValidation)
	}

	raw, err := retryx.Do(ctx, r.retry, "feed.fetch", func(ctx context.Context) ([]byte, error) {
		return r.get(ctx, feedURL)
	})
	if err != nil {
		return nil, err
	}
	items, err := Parse(bytes.NewReader(raw), feedURL)
	if err != nil {
		return nil, err
	}
	if len(items) > r.perFeed {
		items = items[:r.perFeed]
	}
	return items, nil
}

func (r *Reader) get(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build feed request: %v", contractx.ErrValidation, err)
	}
	req.Header.Set("User-Agent", defaultUAHeader)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &contractx.ExternalError{Service: serviceName, Op: "fetch", Transient: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &contractx.ExternalError{
			Service:   serviceName,
			Op:        "fetch",
			Status:    resp.StatusCode,
			Transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
			Err:       fmt.Errorf("feed %s returned %s", feedURL, resp.Status),
		}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &contractx.ExternalError{Service: serviceName, Op: "fetch", Status: resp.StatusCode, Transient: true, Err: err}
	}
	return raw, nil
}

// Parse reads the items of an RSS 2.0 or Atom document with the HTML parser.
// Elements the parser leaves unclosed can swallow their siblings, so fields
// are looked up among all descendants of an item. Items without a title are
// skipped.
func Parse(r io.Reader, source string) ([]contractx.FeedItem, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	escaped := cdataPattern.ReplaceAllStringFunc(string(raw), func(m string) string {
		inner := cdataPattern.FindStringSubmatch(m)[1]
		return html.EscapeString(inner)
	})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escaped))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []contractx.FeedItem
	doc.Find("item, entry").Each(func(_ int, s *goquery.Selection) {
		title := collapse(s.Find("title").First().Text())
		if title == "" {
			return
		}
		summary := s.Find("description, summary, content").First().Text()
		items = append(items, contractx.FeedItem{
			Source:      source,
			Title:       title,
			Link:        linkOf(s),
			Summary:     plainText(summary),
			PublishedAt: dateOf(s),
		})
	})
	return items, nil
}

// linkOf reads an Atom href, or the text after an RSS <link>, which the HTML
// parser treats as a void element.
func linkOf(s *goquery.Selection) string {
	link := s.Find("link").First()
	if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if n := link.Nodes; len(n) > 0 && n[0].NextSibling != nil {
		if text := strings.TrimSpace(n[0].NextSibling.Data); strings.HasPrefix(text, "http") {
			return strings.Fields(text)[0]
		}
	}
	if guid := strings.TrimSpace(s.Find("guid").First().Text()); strings.HasPrefix(guid, "http") {
		return guid
	}
	return ""
}

func dateOf(s *goquery.Selection) time.Time {
	raw := strings.TrimSpace(s.Find("pubdate, published, updated").First().Text())
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// plainText strips the markup feeds embed in descriptions.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
