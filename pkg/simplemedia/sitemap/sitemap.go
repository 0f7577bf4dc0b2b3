// Package sitemap renders sitemap.xml from static pages and division entities
// and publishes it through a blob store.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	// Namespace is the sitemap protocol namespace.
	Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

	// ObjectKey is where the published document is written.
	ObjectKey = "sitemap.xml"
)

// ChangeFreq values defined by the sitemap protocol.
const (
	Always  = "always"
	Hourly  = "hourly"
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
	Yearly  = "yearly"
	Never   = "never"
)

// Entry is one page of the site. Path is relative to the base URL.
type Entry struct {
	Path       string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

// Division is the subset of a division entity the sitemap needs.
type Division struct {
	Slug      string
	UpdatedAt time.Time
}

// DivisionLister returns the divisions that get their own page.
type DivisionLister interface {
	ListDivisions(ctx context.Context) ([]Division, error)
}

// DivisionListerFunc adapts a function to DivisionLister.
type DivisionListerFunc func(ctx context.Context) ([]Division, error)

func (f DivisionListerFunc) ListDivisions(ctx context.Context) ([]Division, error) {
	return f(ctx)
}

// DefaultStatic lists the fixed pages of the site.
func DefaultStatic() []Entry {
	return []Entry{
		{Path: "/", ChangeFreq: Daily, Priority: 1.0},
		{Path: "/about", ChangeFreq: Monthly, Priority: 0.8},
		{Path: "/divisions", ChangeFreq: Weekly, Priority: 0.9},
		{Path: "/products", ChangeFreq: Weekly, Priority: 0.9},
		{Path: "/technologies", ChangeFreq: Monthly, Priority: 0.7},
		{Path: "/history", ChangeFreq: Yearly, Priority: 0.5},
		{Path: "/contact", ChangeFreq: Yearly, Priority: 0.6},
	}
}

// Builder assembles the document from authoritative data.
type Builder struct {
	BaseURL   string
	Static    []Entry
	Divisions DivisionLister

	// DivisionChangeFreq and DivisionPriority apply to every division page.
	DivisionChangeFreq string
	DivisionPriority   float64
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []urlXML `xml:"url"`
}

type urlXML struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority"`
}

// Entries returns the static entries followed by one per division.
func (b *Builder) Entries(ctx context.Context) ([]Entry, error) {
	entries := append([]Entry(nil), b.Static...)
	if b.Divisions == nil {
		return entries, nil
	}

	divisions, err := b.Divisions.ListDivisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list divisions: %w", err)
	}
	freq, priority := b.DivisionChangeFreq, b.DivisionPriority
	if freq == "" {
		freq = Weekly
	}
	if priority == 0 {
		priority = 0.8
	}
	for _, d := range divisions {
		entries = append(entries, Entry{
			Path:       "/divisions/" + d.Slug,
			LastMod:    d.UpdatedAt,
			ChangeFreq: freq,
			Priority:   priority,
		})
	}
	return entries, nil
}

// Build renders the XML document.
func (b *Builder) Build(ctx context.Context) ([]byte, error) {
	entries, err := b.Entries(ctx)
	if err != nil {
		return nil, err
	}

	set := urlSet{Xmlns: Namespace, URLs: make([]urlXML, 0, len(entries))}
	base := strings.TrimSuffix(b.BaseURL, "/")
	for _, e := range entries {
		u := urlXML{
			Loc:        base + "/" + strings.TrimPrefix(e.Path, "/"),
			ChangeFreq: e.ChangeFreq,
			Priority:   fmt.Sprintf("%.1f", e.Priority),
		}
		if !e.LastMod.IsZero() {
			u.LastMod = e.LastMod.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Publisher rebuilds the sitemap and overwrites the published file.
type Publisher struct {
	builder *Builder
	store   simplemedia.BlobStore
	key     string
	logger  *slog.Logger
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithObjectKey overrides the key the document is written to.
func WithObjectKey(key string) PublisherOption {
	return func(p *Publisher) {
		p.key = key
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher writes documents built by builder into store, which should
// be rooted at the public web root.
func NewPublisher(builder *Builder, store simplemedia.BlobStore, opts ...PublisherOption) *Publisher {
	p := &Publisher{builder: builder, store: store, key: ObjectKey, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the regenerator in logs.
func (p *Publisher) Name() string {
	return "sitemap"
}

// Regenerate rebuilds and publishes the sitemap.
func (p *Publisher) Regenerate(ctx context.Context) error {
	doc, err := p.builder.Build(ctx)
	if err != nil {
		return err
	}
	if err := p.store.UploadWithParams(ctx, bytes.NewReader(doc), simplemedia.UploadParams{
		ObjectKey: p.key,
		MimeType:  "application/xml",
	}); err != nil {
		return fmt.Errorf("publish sitemap: %w", err)
	}
	p.logger.DebugContext(ctx, "sitemap published", "key", p.key, "bytes", len(doc))
	return nil
}
