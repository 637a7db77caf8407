// Package registry loads the static list of feed descriptors and the named
// proxy strategies their fallback chains refer to.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
	apperrors "github.com/lueurxax/signal-ingest/internal/core/errors"
)

//go:embed feeds.yaml
var defaultFeeds []byte

const (
	defaultTTLMinutes = 30
	maxTTLMinutes     = 24 * 60
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// builtinProxies are always available to proxy chains.
var builtinProxies = map[string]string{
	"allorigins": "https://api.allorigins.win/raw?url={url}",
	"corsproxy":  "https://corsproxy.io/?url={url}",
	"codetabs":   "https://api.codetabs.com/v1/proxy?quest={url}",
}

// LookupFunc resolves a configuration variable.
type LookupFunc func(name string) (string, bool)

// Options tune loading.
type Options struct {
	// Lookup resolves ${VAR} placeholders. Defaults to os.LookupEnv.
	Lookup LookupFunc
	// Critical marks additional feed ids as critical.
	Critical []string
}

type file struct {
	Proxies map[string]string       `yaml:"proxies"`
	Feeds   []domain.FeedDescriptor `yaml:"feeds"`
}

// Registry is the read-only feed list. Order follows the source file.
type Registry struct {
	feeds   []domain.FeedDescriptor
	byID    map[string]int
	proxies map[string]domain.ProxyStrategy
}

// Load reads descriptors from path, or the embedded registry when path is empty.
func Load(path string, opts Options) (*Registry, error) {
	data := defaultFeeds

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feed registry %s: %w", path, err)
		}

		data = raw
	}

	return Parse(data, opts)
}

// Parse builds a registry from YAML bytes.
func Parse(data []byte, opts Options) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse feed registry: %w", err)
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	r := &Registry{
		feeds:   make([]domain.FeedDescriptor, 0, len(f.Feeds)),
		byID:    make(map[string]int, len(f.Feeds)),
		proxies: make(map[string]domain.ProxyStrategy, len(builtinProxies)+len(f.Proxies)),
	}

	for name, tmpl := range builtinProxies {
		r.proxies[name] = domain.ProxyStrategy{Name: name, Template: tmpl}
	}

	for name, tmpl := range f.Proxies {
		if !strings.Contains(tmpl, "{url}") && !strings.Contains(tmpl, "{rawurl}") {
			return nil, fmt.Errorf("%w: proxy %q has no {url} placeholder", apperrors.ErrInvalidFeed, name)
		}

		r.proxies[name] = domain.ProxyStrategy{Name: name, Template: tmpl}
	}

	critical := make(map[string]bool, len(opts.Critical))
	for _, id := range opts.Critical {
		critical[strings.TrimSpace(id)] = true
	}

	for _, feed := range f.Feeds {
		setDefaults(&feed)
		resolvePlaceholders(&feed, lookup)

		if critical[feed.ID] {
			feed.Critical = true
		}

		if err := r.validate(feed); err != nil {
			return nil, err
		}

		r.byID[feed.ID] = len(r.feeds)
		r.feeds = append(r.feeds, feed)
	}

	return r, nil
}

func setDefaults(feed *domain.FeedDescriptor) {
	feed.ID = strings.TrimSpace(feed.ID)
	feed.Format = domain.FeedFormat(strings.ToLower(string(feed.Format)))
	feed.Category = strings.ToLower(strings.TrimSpace(feed.Category))

	if feed.TTLMinutes == 0 {
		feed.TTLMinutes = defaultTTLMinutes
	}

	if feed.RequiresKey && feed.KeySource == "" {
		feed.KeySource = domain.KeySourceClient
	}

	if feed.Source == "" {
		feed.Source = feed.Name
	}
}

func resolvePlaceholders(feed *domain.FeedDescriptor, lookup LookupFunc) {
	feed.URLTemplate = placeholderRe.ReplaceAllStringFunc(feed.URLTemplate, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]

		value, ok := lookup(name)
		if !ok || strings.TrimSpace(value) == "" {
			feed.MissingConfig = append(feed.MissingConfig, name)
			return match
		}

		return value
	})
}

func (r *Registry) validate(feed domain.FeedDescriptor) error {
	if feed.ID == "" {
		return fmt.Errorf("%w: feed without id", apperrors.ErrInvalidFeed)
	}

	if _, dup := r.byID[feed.ID]; dup {
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicateFeed, feed.ID)
	}

	if feed.URLTemplate == "" {
		return fmt.Errorf("%w: %s: url is required", apperrors.ErrInvalidFeed, feed.ID)
	}

	if !feed.Format.Valid() {
		return fmt.Errorf("%w: %s: unknown format %q", apperrors.ErrInvalidFeed, feed.ID, feed.Format)
	}

	if feed.TTLMinutes < 0 || feed.TTLMinutes > maxTTLMinutes {
		return fmt.Errorf("%w: %s: ttlMinutes out of range", apperrors.ErrInvalidFeed, feed.ID)
	}

	if feed.TimeoutMs < 0 {
		return fmt.Errorf("%w: %s: timeoutMs must be non-negative", apperrors.ErrInvalidFeed, feed.ID)
	}

	switch feed.KeySource {
	case "", domain.KeySourceClient, domain.KeySourceServer:
	default:
		return fmt.Errorf("%w: %s: unknown keySource %q", apperrors.ErrInvalidFeed, feed.ID, feed.KeySource)
	}

	for _, name := range feed.ProxyChain {
		if _, ok := r.proxies[name]; !ok {
			return fmt.Errorf("%w: %s: %s", apperrors.ErrUnknownProxy, feed.ID, name)
		}
	}

	return nil
}

// Feeds returns the descriptors in registry order.
func (r *Registry) Feeds() []domain.FeedDescriptor {
	out := make([]domain.FeedDescriptor, len(r.feeds))
	copy(out, r.feeds)

	return out
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (domain.FeedDescriptor, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return domain.FeedDescriptor{}, false
	}

	return r.feeds[idx], true
}

// Len returns the number of feeds.
func (r *Registry) Len() int {
	return len(r.feeds)
}

// ProxyChain returns the resolved proxy strategies of feed in order.
func (r *Registry) ProxyChain(feed domain.FeedDescriptor) []domain.ProxyStrategy {
	chain := make([]domain.ProxyStrategy, 0, len(feed.ProxyChain))

	for _, name := range feed.ProxyChain {
		if p, ok := r.proxies[name]; ok {
			chain = append(chain, p)
		}
	}

	return chain
}

// CriticalIDs returns the ids of critical feeds, sorted.
func (r *Registry) CriticalIDs() []string {
	var ids []string

	for _, f := range r.feeds {
		if f.Critical {
			ids = append(ids, f.ID)
		}
	}

	sort.Strings(ids)

	return ids
}
