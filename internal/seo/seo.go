// Package seo drafts search metadata for projects and renders the sitemap.
package seo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	MaxTitleLength       = 60
	MaxDescriptionLength = 160
	maxKeywords          = 10
)

var ErrRateLimited = errors.New("seo drafting rate limited")

// ProjectFields is the subset of a project a draft is based on.
type ProjectFields struct {
	Title        string
	Description  string
	Type         string
	Technologies []string
	Features     []string
}

type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	// Source is the generator that produced the draft, or "fallback".
	Source string `json:"source"`
}

// Generator asks a language model for metadata.
type Generator interface {
	Name() string
	Generate(ctx context.Context, f ProjectFields) (Metadata, error)
}

// Drafter throttles and bounds calls to a Generator and never fails: any
// problem yields the deterministic fallback draft.
type Drafter struct {
	gen     Generator
	limiter *rate.Limiter
	timeout time.Duration
}

// NewDrafter allows perMinute generator calls per minute with a burst of the
// same size. gen may be nil, in which case every draft is the fallback.
func NewDrafter(gen Generator, perMinute int, timeout time.Duration) *Drafter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Drafter{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		timeout: timeout,
	}
}

func (d *Drafter) Draft(ctx context.Context, f ProjectFields) Metadata {
	if d.gen == nil {
		return Fallback(f)
	}

	start := time.Now()
	md, err := d.generate(ctx, f)
	if err != nil {
		logger.Log.Warn("SEO draft fell back",
			zap.String("provider", d.gen.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return Fallback(f)
	}

	logger.Log.Info("SEO draft generated",
		zap.String("provider", d.gen.Name()),
		zap.Duration("duration", time.Since(start)),
	)
	return md
}

func (d *Drafter) generate(ctx context.Context, f ProjectFields) (Metadata, error) {
	// Allow never waits: a saturated provider must not hold up the request.
	if !d.limiter.Allow() {
		return Metadata{}, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	md, err := d.gen.Generate(ctx, f)
	if err != nil {
		return Metadata{}, err
	}
	return normalize(md, d.gen.Name())
}

// Fallback builds metadata from the project fields alone.
func Fallback(f ProjectFields) Metadata {
	keywords := append([]string{}, f.Technologies...)
	if f.Type != "" {
		keywords = append(keywords, f.Type)
	}
	return Metadata{
		Title:       truncate(strings.TrimSpace(f.Title), MaxTitleLength),
		Description: truncate(collapseSpace(f.Description), MaxDescriptionLength),
		Keywords:    cleanKeywords(keywords),
		Source:      "fallback",
	}
}

func normalize(md Metadata, source string) (Metadata, error) {
	md.Title = truncate(strings.TrimSpace(md.Title), MaxTitleLength)
	md.Description = truncate(collapseSpace(md.Description), MaxDescriptionLength)
	md.Keywords = cleanKeywords(md.Keywords)
	md.Source = source
	if md.Title == "" || md.Description == "" {
		return Metadata{}, errors.New("incomplete metadata")
	}
	return md, nil
}

// parseAnswer decodes a JSON answer, tolerating a markdown code fence.
func parseAnswer(raw string) (Metadata, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var md Metadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &md); err != nil {
		return Metadata{}, fmt.Errorf("decode answer: %w", err)
	}
	return md, nil
}

func prompt(f ProjectFields) string {
	return fmt.Sprintf(`Write search engine metadata for a digital product listing.
Return JSON only with exactly these keys:
{"title":"at most %d characters","description":"at most %d characters","keywords":["up to %d short keywords"]}

Product title: %s
Product type: %s
Technologies: %s
Features: %s
Description: %s`,
		MaxTitleLength, MaxDescriptionLength, maxKeywords,
		f.Title, f.Type,
		strings.Join(f.Technologies, ", "),
		strings.Join(f.Features, ", "),
		truncate(f.Description, 2000),
	)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)[:max]
	// Prefer cutting on a word boundary when one is reasonably close.
	if i := strings.LastIndex(string(runes), " "); i > 0 && utf8.RuneCountInString(string(runes)[:i]) > max*2/3 {
		return strings.TrimSpace(string(runes)[:i])
	}
	return strings.TrimSpace(string(runes))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := []string{}
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
