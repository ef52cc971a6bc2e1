// Package categorization resolves a default category slug for a subscription
// from its name and provider, using Aho-Corasick multi-pattern matching with
// a fuzzy fallback for misspelled merchant names.
package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultCategory is assigned when no keyword matches.
const DefaultCategory = "other"

// KeywordRule maps a category slug to merchant keywords.
type KeywordRule struct {
	Slug     string
	Keywords []string
}

// DefaultRules is the built-in keyword table. Slugs are lowercase kebab-case;
// users can extend the table through custom category records upstream.
var DefaultRules = []KeywordRule{
	{Slug: "ott", Keywords: []string{"netflix", "hotstar", "disney+", "prime video", "amazon prime", "hulu", "sony liv", "zee5", "paramount+", "apple tv", "jio cinema", "jiocinema"}},
	{Slug: "gaming", Keywords: []string{"xbox game pass", "playstation plus", "ps plus", "ea play", "ubisoft+", "steam", "epic", "riot", "battlenet"}},
	{Slug: "music", Keywords: []string{"spotify", "apple music", "youtube music", "gaana", "wynk", "saavn"}},
	{Slug: "cloud", Keywords: []string{"google drive", "google one", "dropbox", "onedrive", "icloud"}},
	{Slug: "productivity", Keywords: []string{"notion", "todoist", "evernote", "microsoft 365", "office 365", "slack", "zoom"}},
	{Slug: "education", Keywords: []string{"coursera", "udemy", "udacity", "byjus", "unacademy", "skillshare"}},
	{Slug: "finance", Keywords: []string{"zerodha", "moneycontrol", "quickbooks", "xero"}},
	{Slug: "utilities", Keywords: []string{"vpn", "expressvpn", "nordvpn", "surfshark", "1password", "lastpass"}},
	{Slug: "news", Keywords: []string{"nyt", "washington post", "the hindu", "the times", "wsj"}},
	{Slug: "health", Keywords: []string{"cult", "cult fit", "curefit", "fitbit premium", "whoop"}},
}

// fuzzyMinKeywordLen guards the fuzzy fallback against short keywords where a
// small edit distance matches almost anything.
const fuzzyMinKeywordLen = 5

// Resolver matches subscription names/providers against keyword rules in a
// single pass through the text.
type Resolver struct {
	matcher  *ahocorasick.Matcher
	patterns []string
	slugs    []string // slug for patterns[i]
	mu       sync.RWMutex
}

// NewResolver creates a resolver from the given rules.
func NewResolver(rules []KeywordRule) *Resolver {
	r := &Resolver{}
	r.Build(rules)
	return r
}

// NewDefaultResolver creates a resolver over the built-in keyword table.
func NewDefaultResolver() *Resolver {
	return NewResolver(DefaultRules)
}

// Build constructs the Aho-Corasick matcher. It can be called again to
// rebuild when rules change.
func (r *Resolver) Build(rules []KeywordRule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var patterns []string
	var slugs []string
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			patterns = append(patterns, kw)
			slugs = append(slugs, rule.Slug)
		}
	}

	r.patterns = patterns
	r.slugs = slugs

	if len(patterns) == 0 {
		r.matcher = nil
		return
	}

	bytePatterns := make([][]byte, len(patterns))
	for i, p := range patterns {
		bytePatterns[i] = []byte(p)
	}
	r.matcher = ahocorasick.NewMatcher(bytePatterns)
}

// Resolve returns the category slug for a subscription name and provider.
// Exact keyword containment wins; otherwise a fuzzy pass catches close
// misspellings; otherwise DefaultCategory.
func (r *Resolver) Resolve(name, provider string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hay := strings.ToLower(strings.TrimSpace(provider + " " + name))
	if hay == "" || r.matcher == nil {
		return DefaultCategory
	}

	matches := r.matcher.Match([]byte(hay))
	if len(matches) > 0 {
		best := matches[0]
		// Prefer the longest keyword when several match, so "xbox game pass"
		// beats "epic" inside the same description.
		for _, idx := range matches[1:] {
			if len(r.patterns[idx]) > len(r.patterns[best]) {
				best = idx
			}
		}
		return r.slugs[best]
	}

	return r.fuzzyResolve(hay)
}

func (r *Resolver) fuzzyResolve(hay string) string {
	words := strings.Fields(hay)

	bestSlug := DefaultCategory
	bestDistance := 3 // accept up to 2 edits
	for i, pattern := range r.patterns {
		if len(pattern) < fuzzyMinKeywordLen || strings.Contains(pattern, " ") {
			continue
		}
		for _, word := range words {
			if d := fuzzy.LevenshteinDistance(pattern, word); d < bestDistance {
				bestDistance = d
				bestSlug = r.slugs[i]
			}
		}
	}
	return bestSlug
}
