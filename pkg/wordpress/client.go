package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/autoblog/agent/contract"
	retryx "github.com/tanpawarit/autoblog/pkg/retry"
)

const (
	serviceName          = "wordpress"
	maxResponseSizeBytes = 8 << 20
	maxPerPage           = 100

	metaFocusKeyphrase  = "_yoast_wpseo_focuskw"
	metaMetaDescription = "_yoast_wpseo_metadesc"
)

var (
	_ contractx.Publisher  = (*Client)(nil)
	_ contractx.PostSource = (*Client)(nil)
)

type Config struct {
	URL         string        `split_words:"true" required:"true"`
	User        string        `split_words:"true" required:"true"`
	AppPassword string        `split_words:"true" required:"true"`
	CategoryIDs []int64       `envconfig:"CATEGORY_IDS"`
	Timeout     time.Duration `split_words:"true" default:"30s"`
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithRetryPolicy(p retryx.Policy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// Client talks to the WordPress REST API (wp-json/wp/v2) with an application
// password.
type Client struct {
	apiURL      string
	user        string
	password    string
	categoryIDs []int64
	httpClient  *http.Client
	retry       retryx.Policy
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("wordpress url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid wordpress url: %w", err)
	}
	if strings.TrimSpace(cfg.User) == "" || strings.TrimSpace(cfg.AppPassword) == "" {
		return nil, errors.New("wordpress credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		apiURL:      strings.TrimRight(baseURL, "/") + "/wp-json/wp/v2",
		user:        strings.TrimSpace(cfg.User),
		password:    strings.TrimSpace(cfg.AppPassword),
		categoryIDs: cfg.CategoryIDs,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry: retryx.DefaultPolicy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func MustNew(cfg Config, opts ...ClientOption) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

type createPostRequest struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Status     string            `json:"status"`
	Date       string            `json:"date"`
	DateGMT    string            `json:"date_gmt"`
	Slug       string            `json:"slug,omitempty"`
	Excerpt    string            `json:"excerpt,omitempty"`
	Categories []int64           `json:"categories,omitempty"`
	Tags       []int64           `json:"tags,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

type updatePostRequest struct {
	Content string            `json:"content,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// textField carries raw only when the request asked for context=edit.
type textField struct {
	Raw      string `json:"raw"`
	Rendered string `json:"rendered"`
}

func (f textField) source() string {
	if f.Raw != "" {
		return f.Raw
	}
	return f.Rendered
}

type postResponse struct {
	ID      int64          `json:"id"`
	Status  string         `json:"status"`
	Link    string         `json:"link"`
	DateGMT string         `json:"date_gmt"`
	Title   textField      `json:"title"`
	Content textField      `json:"content"`
	Meta    map[string]any `json:"meta"`
}

type tagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Publish creates a scheduled post and returns its id. Only articles with a
// passing verdict are accepted.
func (c *Client) Publish(ctx context.Context, article contractx.ScheduledArticle) (int64, error) {
	if !article.Verdict.Passed {
		return 0, fmt.Errorf("%w: refusing to publish product=%s", contractx.ErrUnverifiedDraft, article.Draft.ProductID)
	}
	if article.PublishAt.IsZero() {
		return 0, fmt.Errorf("%w: publish time is zero", contractx.ErrInvalidSchedule)
	}

	d := article.Draft
	body := createPostRequest{
		Title:      d.Title,
		Content:    d.Content(),
		Status:     string(article.Status),
		Date:       article.PublishAt.Format("2006-01-02T15:04:05"),
		DateGMT:    article.PublishAt.UTC().Format("2006-01-02T15:04:05"),
		Slug:       d.Slug,
		Excerpt:    d.Excerpt,
		Categories: c.categoryIDs,
		Meta:       seoMeta(d),
	}
	if body.Status == "" {
		body.Status = string(contractx.PostStatusFuture)
	}

	if len(d.Tags) > 0 {
		tags, err := c.resolveTags(ctx, d.Tags)
		switch {
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case err != nil:
			log.Ctx(ctx).Warn().Err(err).Strs("tags", d.Tags).Msg("tag lookup failed, publishing without tags")
		default:
			body.Tags = tags
		}
	}

	return retryx.Do(ctx, c.retry, "wordpress.publish", func(ctx context.Context) (int64, error) {
		var out postResponse
		if err := c.do(ctx, "publish", http.MethodPost, c.apiURL+"/posts", body, &out); err != nil {
			return 0, err
		}
		if out.ID <= 0 {
			return 0, &contractx.ExternalError{Service: serviceName, Op: "publish", Err: errors.New("response has no post id")}
		}
		return out.ID, nil
	})
}

// Update replaces the body (and any meta) of an existing post.
func (c *Client) Update(ctx context.Context, update contractx.PostUpdate) error {
	if update.PostID <= 0 {
		return fmt.Errorf("%w: post id is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(update.Body) == "" && len(update.Meta) == 0 {
		return fmt.Errorf("%w: update is empty", contractx.ErrValidation)
	}

	endpoint := fmt.Sprintf("%s/posts/%d", c.apiURL, update.PostID)
	body := updatePostRequest{Content: update.Body, Meta: update.Meta}
	return retryx.Run(ctx, c.retry, "wordpress.update", func(ctx context.Context) error {
		return c.do(ctx, "update", http.MethodPost, endpoint, body, nil)
	})
}

// resolveTags maps tag names to term ids, creating the tags that do not
// exist yet. Names are matched case-insensitively.
func (c *Client) resolveTags(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true

		id, err := c.findTag(ctx, name)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			if id, err = c.createTag(ctx, name); err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) findTag(ctx context.Context, name string) (int64, error) {
	q := url.Values{}
	q.Set("search", name)
	q.Set("per_page", fmt.Sprint(maxPerPage))
	endpoint := c.apiURL + "/tags?" + q.Encode()

	found, err := retryx.Do(ctx, c.retry, "wordpress.tags.search", func(ctx context.Context) ([]tagResponse, error) {
		var out []tagResponse
		if err := c.do(ctx, "tags.search", http.MethodGet, endpoint, nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	for _, t := range found {
		if strings.EqualFold(html.UnescapeString(t.Name), name) {
			return t.ID, nil
		}
	}
	return 0, nil
}

func (c *Client) createTag(ctx context.Context, name string) (int64, error) {
	return retryx.Do(ctx, c.retry, "wordpress.tags.create", func(ctx context.Context) (int64, error) {
		var out tagResponse
		if err := c.do(ctx, "tags.create", http.MethodPost, c.apiURL+"/tags", map[string]string{"name": name}, &out); err != nil {
			return 0, err
		}
		if out.ID <= 0 {
			return 0, &contractx.ExternalError{Service: serviceName, Op: "tags.create", Err: errors.New("response has no tag id")}
		}
		return out.ID, nil
	})
}

// ListPosts returns up to limit of the most recent published posts. Posts
// are read with context=edit so bodies carry the stored markup, block
// comments and shortcodes included, rather than the rendered page.
func (c *Client) ListPosts(ctx context.Context, limit int) ([]contractx.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	perPage := min(limit, maxPerPage)

	posts := make([]contractx.Post, 0, limit)
	for page := 1; len(posts) < limit; page++ {
		q := url.Values{}
		q.Set("per_page", fmt.Sprint(perPage))
		q.Set("page", fmt.Sprint(page))
		q.Set("status", "publish")
		q.Set("orderby", "date")
		q.Set("context", "edit")
		endpoint := c.apiURL + "/posts?" + q.Encode()

		batch, err := retryx.Do(ctx, c.retry, "wordpress.list", func(ctx context.Context) ([]postResponse, error) {
			var out []postResponse
			if err := c.do(ctx, "list", http.MethodGet, endpoint, nil, &out); err != nil {
				return nil, err
			}
			return out, nil
		})
		if err != nil {
			var ext *contractx.ExternalError
			if page > 1 && errors.As(err, &ext) && ext.Status == http.StatusBadRequest {
				break
			}
			return nil, err
		}

		for _, p := range batch {
			if len(posts) >= limit {
				break
			}
			posts = append(posts, toPost(p))
		}
		if len(batch) < perPage {
			break
		}
	}
	return posts, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, in any, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal wordpress %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build wordpress %s request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &contractx.ExternalError{Service: serviceName, Op: op, Transient: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return &contractx.ExternalError{Service: serviceName, Op: op, Status: resp.StatusCode, Transient: true, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &contractx.ExternalError{
			Service:   serviceName,
			Op:        op,
			Status:    resp.StatusCode,
			Transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError,
			Err:       fmt.Errorf("body=%s", truncate(string(raw), 300)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &contractx.ExternalError{Service: serviceName, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func seoMeta(d contractx.Draft) map[string]string {
	meta := map[string]string{}
	if v := strings.TrimSpace(d.SEOKeyphrase); v != "" {
		meta[metaFocusKeyphrase] = v
	}
	if v := strings.TrimSpace(d.MetaDescription); v != "" {
		meta[metaMetaDescription] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func toPost(p postResponse) contractx.Post {
	post := contractx.Post{
		ID:    p.ID,
		Title: PlainText(p.Title.source()),
		Body:  p.Content.source(),
		Link:  p.Link,
	}
	if t, err := time.Parse("2006-01-02T15:04:05", p.DateGMT); err == nil {
		post.PublishedAt = t.UTC()
	}
	if kw, ok := p.Meta[metaFocusKeyphrase].(string); ok && strings.TrimSpace(kw) != "" {
		post.Keywords = append(post.Keywords, strings.TrimSpace(kw))
	}
	if post.Title != "" {
		post.Keywords = append(post.Keywords, post.Title)
	}
	return post
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
