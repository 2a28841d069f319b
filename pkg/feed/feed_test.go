package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Rival Beauty</title>
  <link>https://rival.example</link>
  <image><url>https://rival.example/logo.png</url><title>logo</title></image>
  <item>
    <title><![CDATA[Niacinamide & barrier care]]></title>
    <link>https://rival.example/niacinamide</link>
    <description><![CDATA[<p>What <b>niacinamide</b> does for the skin barrier.</p>]]></description>
    <enclosure url="https://rival.example/a.jpg" type="image/jpeg"/>
    <pubDate>Mon, 02 Mar 2026 08:00:00 +0700</pubDate>
    <guid>https://rival.example/?p=1</guid>
  </item>
  <item>
    <title>Sunscreen in the rainy season</title>
    <description>&lt;p&gt;Why SPF still matters.&lt;/p&gt;</description>
    <guid isPermaLink="true">https://rival.example/?p=2</guid>
  </item>
  <item>
    <description>no title, skipped</description>
  </item>
</channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Beauty</title>
  <entry>
    <title>Retinol for beginners</title>
    <link rel="alternate" href="https://atom.example/retinol"/>
    <summary>Start low and slow.</summary>
    <updated>2026-02-27T10:00:00Z</updated>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	t.Parallel()

	items, err := Parse(strings.NewReader(rssDoc), "rival")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2: %#v", len(items), items)
	}

	first := items[0]
	if first.Title != "Niacinamide & barrier care" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.Link != "https://rival.example/niacinamide" {
		t.Fatalf("link = %q", first.Link)
	}
	if first.Summary != "What niacinamide does for the skin barrier." {
		t.Fatalf("summary = %q", first.Summary)
	}
	if want := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC); !first.PublishedAt.Equal(want) {
		t.Fatalf("published = %v, want %v", first.PublishedAt, want)
	}

	second := items[1]
	if second.Summary != "Why SPF still matters." || second.Link != "https://rival.example/?p=2" {
		t.Fatalf("second item = %#v", second)
	}
	if second.Source != "rival" {
		t.Fatalf("source = %q", second.Source)
	}
}

func TestParseAtom(t *testing.T) {
	t.Parallel()

	items, err := Parse(strings.NewReader(atomDoc), "atom")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	it := items[0]
	if it.Title != "Retinol for beginners" || it.Link != "https://atom.example/retinol" || it.Summary != "Start low and slow." {
		t.Fatalf("item = %#v", it)
	}
	if it.PublishedAt.IsZero() {
		t.Fatalf("updated date not parsed")
	}
}

func newTestReader(server *httptest.Server, perFeed int) *Reader {
	return NewReader(
		WithHTTPClient(server.Client()),
		WithRetryPolicy(retryx.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}),
		WithPerFeed(perFeed),
	)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, rssDoc)
	}))
	t.Cleanup(server.Close)

	items, err := newTestReader(server, 1).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 || calls.Load() != 2 {
		t.Fatalf("items=%d calls=%d, want 1 and 2", len(items), calls.Load())
	}
	if items[0].Source != server.URL {
		t.Fatalf("source = %q", items[0].Source)
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := newTestReader(server, 5).Fetch(context.Background(), server.URL)
	if !errors.Is(err, contractx.ErrExternalService) {
		t.Fatalf("Fetch() error = %v, want ErrExternalService", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}
