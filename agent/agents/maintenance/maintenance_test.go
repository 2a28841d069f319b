package maintenance

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	compliancex "github.com/tanpawarit/autoblog/agent/compliance"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

const testRules = `
version: "m1"
current_year: 2026
fact_anchors: ["as of", "updated", "last updated", "ณ ปี"]
rules:
  - id: cure-claim
    kind: keyword
    category: compliance
    severity: block
    terms: ["cures cancer"]
    replacement: "supports skin health"
  - id: superlative-best
    kind: superlative
    category: tone
    severity: warn
    terms: ["best"]
    replacement: "well-loved"
  - id: amazing
    kind: superlative
    category: tone
    severity: warn
    terms: ["amazing"]
`

func mustRules(t *testing.T) compliancex.RuleSet {
	t.Helper()
	rs, err := compliancex.Parse([]byte(testRules))
	require.NoError(t, err)
	return rs
}

func findingsOf(fs []contractx.MaintenanceFinding, cat contractx.FindingCategory) []contractx.MaintenanceFinding {
	var out []contractx.MaintenanceFinding
	for _, f := range fs {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func TestAuditPostStaleYearYieldsOneFactFinding(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: `<p>Prices are correct as of 2024.</p><p><a href="/a">one</a> <a href="/b">two</a></p>`}
	findings := AuditPost(context.Background(), post, Env{Rules: mustRules(t), LinkThreshold: 2})

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, contractx.FindingFactCheck, f.Category)
	assert.Equal(t, "2024", f.Original)
	assert.Equal(t, "2026", f.Correction)
	assert.Equal(t, "2024", post.Body[f.Start:f.End])
}

func TestAuditPostCurrentYearIsClean(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: `<p>Updated 2026. <a href="/a">a</a><a href="/b">b</a></p>`}
	assert.Empty(t, AuditPost(context.Background(), post, Env{Rules: mustRules(t), LinkThreshold: 2}))
}

func TestAuditPostBuddhistEraYear(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: "<p>ข้อมูล ณ ปี 2567</p>"}
	fs := findingsOf(AuditPost(context.Background(), post, Env{Rules: mustRules(t)}), contractx.FindingFactCheck)

	require.Len(t, fs, 1)
	assert.Equal(t, "2569", fs[0].Correction)
}

func TestAuditPostLongestAnchorWins(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: "<p>Last updated 2023.</p>"}
	fs := findingsOf(AuditPost(context.Background(), post, Env{Rules: mustRules(t)}), contractx.FindingFactCheck)
	assert.Len(t, fs, 1)
}

func TestAuditPostComplianceAndTone(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 3, Body: `<p>The best serum.</p><p>It cures cancer!</p><p>Simply amazing.</p>`}
	fs := AuditPost(context.Background(), post, Env{Rules: mustRules(t)})

	comp := findingsOf(fs, contractx.FindingCompliance)
	require.Len(t, comp, 1)
	assert.Equal(t, "cure-claim", comp[0].RuleID)
	assert.Equal(t, "supports skin health", comp[0].Correction)

	// warn without a replacement is not actionable
	tone := findingsOf(fs, contractx.FindingTone)
	require.Len(t, tone, 1)
	assert.Equal(t, "best", tone[0].Original)
}

func TestAuditPostAdjacentMatches(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 4, Body: "<p>The best best serum.</p><p>Updated 2023, as of 2024.</p>"}
	fs := AuditPost(context.Background(), post, Env{Rules: mustRules(t)})

	require.Len(t, findingsOf(fs, contractx.FindingTone), 2)
	require.Len(t, findingsOf(fs, contractx.FindingFactCheck), 2)

	plan := ApplyFindings(post.Body, fs)
	assert.Equal(t, "<p>The well-loved well-loved serum.</p><p>Updated 2026, as of 2026.</p>", plan.Body)
}

func TestAuditPostBundledRulesKeepWordsContainingCure(t *testing.T) {
	t.Parallel()

	rules, err := compliancex.Load(filepath.Join("..", "..", "..", "config", "compliance_rules.yaml"))
	require.NoError(t, err)

	post := contractx.Post{ID: 5, Body: "<p>Keep your skin barrier secure with a gentle manicure routine.</p><p>Oils are procured from local farms.</p>"}
	fs := AuditPost(context.Background(), post, Env{Rules: rules})

	assert.Empty(t, findingsOf(fs, contractx.FindingCompliance))
	plan := ApplyFindings(post.Body, fs)
	assert.Equal(t, post.Body, plan.Body)
}

func TestAuditPostIgnoresMatchesInsideMarkup(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 3, Body: `<p><img alt="best" src="/x.png"> plain text</p>`}
	assert.Empty(t, findingsOf(AuditPost(context.Background(), post, Env{Rules: mustRules(t)}), contractx.FindingTone))
}

func TestAuditPostProposesInternalLinks(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: `<p>Pair vitamin C with sunscreen every morning.</p>`}
	others := []contractx.Post{
		post,
		{ID: 2, Link: "https://blog.example/sunscreen", Keywords: []string{"sunscreen"}},
		{ID: 3, Link: "https://blog.example/vitamin-c", Keywords: []string{"vitamin c"}},
		{ID: 4, Link: "https://blog.example/retinol", Keywords: []string{"retinol"}},
	}
	fs := findingsOf(AuditPost(context.Background(), post, Env{Rules: mustRules(t), Posts: others, LinkThreshold: 2}), contractx.FindingInternalLink)

	require.Len(t, fs, 2)
	assert.Equal(t, "sunscreen", fs[0].Original)
	assert.Equal(t, `<a href="https://blog.example/sunscreen">sunscreen</a>`, fs[0].Correction)
	assert.Equal(t, "vitamin C", fs[1].Original)
}

func TestAuditPostSkipsLinkingWhenEnoughLinks(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: `<p><a href="/x">x</a> <a href="/y">y</a> sunscreen</p>`}
	others := []contractx.Post{{ID: 2, Link: "/sunscreen", Keywords: []string{"sunscreen"}}}
	fs := AuditPost(context.Background(), post, Env{Rules: mustRules(t), Posts: others, LinkThreshold: 2})
	assert.Empty(t, findingsOf(fs, contractx.FindingInternalLink))
}

func TestAuditPostKeepsExistingAnchorsIntact(t *testing.T) {
	t.Parallel()

	post := contractx.Post{ID: 1, Body: `<p>Read <a href="/old">sunscreen tips</a> first.</p>`}
	others := []contractx.Post{{ID: 2, Link: "/sunscreen", Keywords: []string{"sunscreen"}}}
	fs := AuditPost(context.Background(), post, Env{Rules: mustRules(t), Posts: others, LinkThreshold: 2})
	assert.Empty(t, findingsOf(fs, contractx.FindingInternalLink))
}

func TestAuditPostBrokenRulesStillLinks(t *testing.T) {
	t.Parallel()

	broken, _ := compliancex.Parse(nil)
	post := contractx.Post{ID: 1, Body: `<p>sunscreen as of 2020</p>`}
	others := []contractx.Post{{ID: 2, Link: "/sunscreen", Keywords: []string{"sunscreen"}}}
	fs := AuditPost(context.Background(), post, Env{Rules: broken, Posts: others, LinkThreshold: 1})

	require.Len(t, fs, 1)
	assert.Equal(t, contractx.FindingInternalLink, fs[0].Category)
}

func TestApplyFindingsPrecedence(t *testing.T) {
	t.Parallel()

	body := `<p>As of 2024 the best serum cures cancer.</p><p>Try sunscreen.</p>`
	rs := mustRules(t)
	post := contractx.Post{ID: 1, Body: body}
	fs := AuditPost(context.Background(), post, Env{
		Rules:         rs,
		Posts:         []contractx.Post{{ID: 2, Link: "/serum", Keywords: []string{"serum"}}, {ID: 3, Link: "/spf", Keywords: []string{"sunscreen"}}},
		LinkThreshold: 2,
	})
	plan := ApplyFindings(body, fs)

	// the compliance fix claims the first sentence; weaker findings there lose
	cats := map[contractx.FindingCategory]int{}
	for _, f := range plan.Applied {
		cats[f.Category]++
	}
	assert.Equal(t, 1, cats[contractx.FindingCompliance])
	assert.Equal(t, 0, cats[contractx.FindingTone])
	assert.Equal(t, 0, cats[contractx.FindingFactCheck])
	assert.Equal(t, 1, cats[contractx.FindingInternalLink])

	assert.Contains(t, plan.Body, "supports skin health")
	assert.NotContains(t, plan.Body, "cures cancer")
	assert.Contains(t, plan.Body, `<a href="/spf">sunscreen</a>`)
	assert.Contains(t, plan.Body, "As of 2024")
}

func TestApplyFindingsSameCategoryBothApply(t *testing.T) {
	t.Parallel()

	body := "<p>The best cream and the best toner.</p>"
	fs := AuditPost(context.Background(), contractx.Post{ID: 1, Body: body}, Env{Rules: mustRules(t)})
	plan := ApplyFindings(body, fs)

	assert.Len(t, plan.Applied, 2)
	assert.Equal(t, "<p>The well-loved cream and the well-loved toner.</p>", plan.Body)
}

func TestApplyFindingsDropsStaleOffsets(t *testing.T) {
	t.Parallel()

	plan := ApplyFindings("<p>hello</p>", []contractx.MaintenanceFinding{
		{Category: contractx.FindingTone, Original: "world", Start: 3, End: 8},
	})
	assert.False(t, plan.Changed())
	assert.Len(t, plan.Dropped, 1)
	assert.Equal(t, "<p>hello</p>", plan.Body)
}

type fakeBlog struct {
	mu        sync.Mutex
	posts     []contractx.Post
	listErr   error
	updateErr map[int64]error
	updates   []contractx.PostUpdate
}

func (f *fakeBlog) ListPosts(ctx context.Context, limit int) ([]contractx.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.posts) {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func (f *fakeBlog) Publish(ctx context.Context, a contractx.ScheduledArticle) (int64, error) {
	return 0, errors.New("maintenance must not publish")
}

func (f *fakeBlog) Update(ctx context.Context, u contractx.PostUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[u.PostID]; err != nil {
		return err
	}
	f.updates = append(f.updates, u)
	return nil
}

func blogFixture() *fakeBlog {
	return &fakeBlog{posts: []contractx.Post{
		{ID: 1, Body: "<p>Accurate as of 2024.</p>"},
		{ID: 2, Body: `<p>Clean. <a href="/a">a</a> <a href="/b">b</a></p>`},
		{ID: 3, Body: "<p>This cures cancer.</p>"},
	}}
}

func TestServiceRunUpdatesOnlyPostsWithFindings(t *testing.T) {
	t.Parallel()

	blog := blogFixture()
	svc, err := New(blog, blog, mustRules(t), Config{Limit: 10, Workers: 2, LinkThreshold: 2})
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Audited)
	assert.Equal(t, 2, report.Updated)
	require.Len(t, blog.updates, 2)

	bodies := map[int64]string{}
	for _, u := range blog.updates {
		bodies[u.PostID] = u.Body
	}
	assert.Equal(t, "<p>Accurate as of 2026.</p>", bodies[1])
	assert.Equal(t, "<p>This supports skin health.</p>", bodies[3])
	_, touched := bodies[2]
	assert.False(t, touched)
}

func TestServiceRunKeepsBlockMarkup(t *testing.T) {
	t.Parallel()

	raw := "<!-- wp:paragraph --><p>Accurate as of 2024. [product id=\"7\"]</p><!-- /wp:paragraph -->"
	blog := &fakeBlog{posts: []contractx.Post{{ID: 8, Body: raw}}}
	svc, err := New(blog, blog, mustRules(t), Config{Limit: 10, Workers: 1})
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, blog.updates, 1)
	assert.Equal(t, strings.Replace(raw, "2024", "2026", 1), blog.updates[0].Body)
}

func TestServiceRunDryRun(t *testing.T) {
	t.Parallel()

	blog := blogFixture()
	svc, err := New(blog, nil, mustRules(t), Config{Limit: 10, Workers: 4, DryRun: true})
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Zero(t, report.Updated)
	assert.Empty(t, blog.updates)
	assert.NotEmpty(t, report.Posts[0].Applied)
}

func TestServiceRunReportsUpdateFailures(t *testing.T) {
	t.Parallel()

	blog := blogFixture()
	blog.updateErr = map[int64]error{3: &contractx.ExternalError{Service: "wordpress", Op: "update", Status: 403}}
	svc, err := New(blog, blog, mustRules(t), Config{Limit: 10, Workers: 1})
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, contractx.ErrExternalService)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Updated)
	assert.True(t, strings.Contains(report.Posts[2].Err, "403"))
}

func TestServiceRunListFailure(t *testing.T) {
	t.Parallel()

	blog := &fakeBlog{listErr: &contractx.ExternalError{Service: "wordpress", Op: "list", Status: 502, Transient: true}}
	svc, err := New(blog, blog, mustRules(t), Config{})
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, contractx.ErrExternalService)
}

func TestNewRequiresSource(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil, compliancex.RuleSet{}, Config{})
	assert.ErrorIs(t, err, ErrMissingDep)
}
