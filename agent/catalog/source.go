package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/autoblog/agent/contract"
)

// Source lists the products one backing store offers. An unreadable store
// returns an error wrapping contract.ErrSourceUnavailable.
type Source interface {
	Name() string
	Products(ctx context.Context) ([]contractx.Product, error)
}

var (
	nameColumns        = []string{"product name", "name", "title", "product_name"}
	descriptionColumns = []string{"description", "content", "product_description"}
	keywordColumns     = []string{"keywords"}
)

// CSVSource reads products from a CSV file with a header row.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: strings.TrimSpace(path)}
}

func (s *CSVSource) Name() string { return string(contractx.ProductSourceCSV) }

func (s *CSVSource) Products(ctx context.Context) ([]contractx.Product, error) {
	if s.path == "" {
		return nil, fmt.Errorf("%w: csv path is empty", contractx.ErrSourceUnavailable)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open csv: %v", contractx.ErrSourceUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", contractx.ErrSourceUnavailable, err)
	}

	cols := indexColumns(header)
	nameIdx := firstColumn(cols, nameColumns)
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: csv has no product name column", contractx.ErrSourceUnavailable)
	}
	descIdx := firstColumn(cols, descriptionColumns)
	kwIdx := firstColumn(cols, keywordColumns)

	var products []contractx.Product
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv row: %v", contractx.ErrSourceUnavailable, err)
		}

		name := field(rec, nameIdx)
		if name == "" {
			continue
		}
		products = append(products, contractx.Product{
			ID:          "csv:" + name,
			Name:        name,
			Description: field(rec, descIdx),
			Keywords:    splitKeywords(field(rec, kwIdx)),
			Source:      contractx.ProductSourceCSV,
		})
	}
	return products, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := cols[key]; !ok {
			cols[key] = i
		}
	}
	return cols
}

func firstColumn(cols map[string]int, names []string) int {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i
		}
	}
	return -1
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

func splitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TextDirSource treats every .txt file in a directory as one product. The
// first non-empty line is the name; a "Keywords:" line lists keywords.
type TextDirSource struct {
	dir string
}

func NewTextDirSource(dir string) *TextDirSource {
	return &TextDirSource{dir: strings.TrimSpace(dir)}
}

func (s *TextDirSource) Name() string { return string(contractx.ProductSourceText) }

func (s *TextDirSource) Products(ctx context.Context) ([]contractx.Product, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: product directory is empty", contractx.ErrSourceUnavailable)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read product directory: %v", contractx.ErrSourceUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	products := make([]contractx.Product, 0, len(names))
	for _, n := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, n))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", contractx.ErrSourceUnavailable, n, err)
		}
		p, ok := parseTextProduct(string(raw))
		if !ok {
			continue
		}
		p.ID = "text:" + strings.TrimSuffix(n, filepath.Ext(n))
		products = append(products, p)
	}
	return products, nil
}

func parseTextProduct(raw string) (contractx.Product, bool) {
	p := contractx.Product{Source: contractx.ProductSourceText}
	var desc []string
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if p.Name == "" {
			if trimmed != "" {
				p.Name = trimmed
			}
			continue
		}
		if k, v, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "keywords") {
			p.Keywords = append(p.Keywords, splitKeywords(v)...)
			continue
		}
		desc = append(desc, line)
	}
	p.Description = strings.TrimSpace(strings.Join(desc, "\n"))
	return p, p.Name != ""
}
