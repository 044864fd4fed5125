// Package recommend ranks catalog products against a shopper's intent.
package recommend

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/catalog"
	"github.com/dmitrymomot/handoff/internal/intent"
	"github.com/dmitrymomot/handoff/internal/session"
)

// Result is a ranked recommendation list. Explanations align with Products.
type Result struct {
	Products     []catalog.Product `json:"products"`
	Explanations []string          `json:"explanations"`
	Confidence   float64           `json:"confidence"`
}

// Engine recommends products. Implementations never fail; they return an
// empty Result instead.
type Engine interface {
	Recommend(ctx context.Context, in session.Intent, limit int) Result
}

// Tag weights by the intent field they come from.
const (
	weightOccasion   = 3
	weightSeason     = 2
	weightStyle      = 2
	weightPreference = 1
	weightBudgetTier = 1
)

// Scorer is the tag-overlap Engine over a catalog repository.
type Scorer struct {
	products catalog.Repository
	logger   *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Scorer over products.
func New(products catalog.Repository, opts ...Option) *Scorer {
	s := &Scorer{
		products: products,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scored struct {
	product catalog.Product
	score   int
	reasons []string
}

// Recommend returns up to limit in-stock products within budget, best
// match first. Without any intent it falls back to the cheapest items.
func (s *Scorer) Recommend(ctx context.Context, in session.Intent, limit int) Result {
	empty := Result{Products: []catalog.Product{}, Explanations: []string{}}
	if limit <= 0 || s.products == nil {
		return empty
	}

	all, err := s.products.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "catalog unavailable, returning no recommendations",
			logger.Component("recommend"), logger.Error(err))
		return empty
	}

	weights := tagWeights(in)
	maxScore := 0
	for _, w := range weights {
		maxScore += w
	}
	maxScore += len(in.Preferences) * weightPreference

	var candidates []scored
	for _, p := range all {
		if !p.InStock() || (in.Budget > 0 && p.Price > in.Budget) {
			continue
		}
		c := score(p, in, weights)
		if maxScore > 0 && c.score == 0 {
			continue
		}
		candidates = append(candidates, c)
	}

	fallback := false
	if len(candidates) == 0 && maxScore > 0 {
		// Nothing matched the intent; offer what fits the budget.
		fallback = true
		for _, p := range all {
			if p.InStock() && (in.Budget <= 0 || p.Price <= in.Budget) {
				candidates = append(candidates, scored{product: p})
			}
		}
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.product.Price, b.product.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.product.ID, b.product.ID)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	res := Result{
		Products:     make([]catalog.Product, 0, len(candidates)),
		Explanations: make([]string, 0, len(candidates)),
	}
	total := 0
	for _, c := range candidates {
		res.Products = append(res.Products, c.product)
		res.Explanations = append(res.Explanations, explain(c, in))
		total += c.score
	}

	switch {
	case len(candidates) == 0:
		res.Confidence = 0
	case maxScore == 0 || fallback:
		res.Confidence = 0.2
	default:
		res.Confidence = min(float64(total)/float64(len(candidates)*maxScore), 1)
	}
	return res
}

func tagWeights(in session.Intent) map[string]int {
	weights := map[string]int{}
	for _, tag := range intent.TagsFor(session.Intent{Occasion: in.Occasion}) {
		weights[tag] = weightOccasion
	}
	for _, tag := range intent.TagsFor(session.Intent{Season: in.Season}) {
		weights[tag] = weightSeason
	}
	for _, tag := range intent.TagsFor(session.Intent{Style: in.Style}) {
		weights[tag] = weightStyle
	}
	for _, tag := range intent.TagsFor(session.Intent{Budget: in.Budget}) {
		weights[tag] = weightBudgetTier
	}
	return weights
}

func score(p catalog.Product, in session.Intent, weights map[string]int) scored {
	c := scored{product: p}
	for _, tag := range p.Tags {
		if w, ok := weights[tag]; ok {
			c.score += w
			c.reasons = append(c.reasons, tag)
		}
	}

	haystack := strings.ToLower(p.Name + " " + p.Category + " " + strings.Join(p.Tags, " "))
	for _, pref := range in.Preferences {
		if strings.Contains(haystack, strings.ToLower(pref)) {
			c.score += weightPreference
			c.reasons = append(c.reasons, pref)
		}
	}
	return c
}

func explain(c scored, in session.Intent) string {
	var b strings.Builder
	b.WriteString(c.product.Name)
	if len(c.reasons) > 0 {
		b.WriteString(" matches ")
		b.WriteString(strings.Join(c.reasons, ", "))
	} else {
		b.WriteString(" is available now")
	}
	if in.Budget > 0 {
		fmt.Fprintf(&b, " and fits your $%s budget", strconv.FormatFloat(in.Budget, 'f', -1, 64))
	}
	return b.String()
}
