// Package credentials resolves API keys for feeds. Key storage is external;
// the resolver only reads the maps it is given.
package credentials

import (
	"strings"

	"github.com/lueurxax/signal-ingest/internal/core/domain"
)

// Key origins.
const (
	OriginLocal  = "local"
	OriginGroup  = "group"
	OriginServer = "server"
)

// Key is a resolved credential and how to attach it to a request.
type Key struct {
	Value  string
	Param  string
	Header string
	Origin string
}

// Resolver looks up keys in local, group and server scopes, in that order.
type Resolver struct {
	local  map[string]string
	group  map[string]string
	server map[string]string
}

// NewResolver creates a resolver. Local and server maps are keyed by feed id
// (server also accepts a key group), the group map by key group.
func NewResolver(local, group, server map[string]string) *Resolver {
	return &Resolver{
		local:  cleanMap(local),
		group:  cleanMap(group),
		server: cleanMap(server),
	}
}

// Resolve returns the usable key for feed. Server-managed feeds only accept
// server keys.
func (r *Resolver) Resolve(feed domain.FeedDescriptor) (Key, bool) {
	if feed.KeySource == domain.KeySourceServer {
		return r.serverKey(feed)
	}

	if v, ok := r.local[feed.ID]; ok {
		return r.key(feed, v, OriginLocal), true
	}

	if feed.KeyGroup != "" {
		if v, ok := r.group[feed.KeyGroup]; ok {
			return r.key(feed, v, OriginGroup), true
		}
	}

	return r.serverKey(feed)
}

func (r *Resolver) serverKey(feed domain.FeedDescriptor) (Key, bool) {
	if v, ok := r.server[feed.ID]; ok {
		return r.key(feed, v, OriginServer), true
	}

	if feed.KeyGroup != "" {
		if v, ok := r.server[feed.KeyGroup]; ok {
			return r.key(feed, v, OriginServer), true
		}
	}

	return Key{}, false
}

func (r *Resolver) key(feed domain.FeedDescriptor, value, origin string) Key {
	return Key{
		Value:  value,
		Param:  feed.KeyParam,
		Header: feed.KeyHeader,
		Origin: origin,
	}
}

func cleanMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))

	for k, v := range in {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		if k == "" || v == "" {
			continue
		}

		out[k] = v
	}

	return out
}
