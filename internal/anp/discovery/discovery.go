// Package discovery implements ANP node discovery (§4.6.8): mDNS
// advertisement of a node under "_aaeq-anp._tcp.local." and client-side
// browsing with a short-TTL result cache so repeated lookups don't
// re-trigger a full mDNS browse.
package discovery

import (
	"context"
	"time"

	"github.com/brutella/dnssd"
	"github.com/patrickmn/go-cache"

	"github.com/aaeq-audio/aaeq/internal/errors"
)

// ServiceType is the mDNS service type ANP nodes advertise under.
const ServiceType = "_aaeq-anp._tcp"

// DefaultCacheTTL matches spec.md §4.6.8's 30-second discovery cache.
const DefaultCacheTTL = 30 * time.Second

// Node describes one discovered ANP node.
type Node struct {
	Name     string
	Host     string
	Port     int
	NodeUUID string
	Text     map[string]string
}

// Advertise registers name/port under ServiceType and starts responding
// to mDNS queries. It blocks until ctx is cancelled, so callers should run
// it in a goroutine.
func Advertise(ctx context.Context, name string, port int, nodeUUID string) error {
	responder, err := dnssd.NewResponder()
	if err != nil {
		return errors.New(err).Component("anp.discovery").Category(errors.CategoryNetwork).Build()
	}

	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
		Text: map[string]string{"node_uuid": nodeUUID, "protocol_version": "0.4"},
	}
	service, err := dnssd.NewService(cfg)
	if err != nil {
		return errors.New(err).Component("anp.discovery").Category(errors.CategoryNetwork).Build()
	}

	if _, err := responder.Add(service); err != nil {
		return errors.New(err).Component("anp.discovery").Category(errors.CategoryNetwork).Build()
	}

	return responder.Respond(ctx)
}

// Browser discovers ANP nodes on the LAN, caching results for cacheTTL so
// repeated Discover calls within that window skip a fresh mDNS browse.
type Browser struct {
	cache *cache.Cache
}

// NewBrowser creates a Browser with the given cache TTL (DefaultCacheTTL
// if zero).
func NewBrowser(cacheTTL time.Duration) *Browser {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Browser{cache: cache.New(cacheTTL, cacheTTL*2)}
}

const cacheKey = "anp-nodes"

// Discover returns the currently known ANP nodes, browsing mDNS for
// browseFor if the cache is empty or expired.
func (b *Browser) Discover(ctx context.Context, browseFor time.Duration) ([]Node, error) {
	if cached, ok := b.cache.Get(cacheKey); ok {
		return cached.([]Node), nil
	}

	browseCtx, cancel := context.WithTimeout(ctx, browseFor)
	defer cancel()

	var found []Node
	addFn := func(e dnssd.BrowseEntry) {
		found = append(found, nodeFromEntry(e))
	}
	rmvFn := func(e dnssd.BrowseEntry) {}

	if err := dnssd.LookupType(browseCtx, ServiceType, addFn, rmvFn); err != nil && browseCtx.Err() == nil {
		return nil, errors.New(err).Component("anp.discovery").Category(errors.CategoryNetwork).Build()
	}

	b.cache.Set(cacheKey, found, cache.DefaultExpiration)
	return found, nil
}

// Invalidate clears the cached result set, forcing the next Discover to
// re-browse immediately.
func (b *Browser) Invalidate() {
	b.cache.Delete(cacheKey)
}

func nodeFromEntry(e dnssd.BrowseEntry) Node {
	host := ""
	if len(e.IPs) > 0 {
		host = e.IPs[0].String()
	}
	return Node{
		Name:     e.Name,
		Host:     host,
		Port:     e.Port,
		NodeUUID: e.Text["node_uuid"],
		Text:     e.Text,
	}
}
