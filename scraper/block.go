package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/profilr/config"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerHosts are ad and analytics hosts a profile page never needs.
// The site's own first-party beacons are included; its API hosts are not.
var trackerHosts = map[string]struct{}{
	"px.ads.linkedin.com":   {},
	"ads.linkedin.com":      {},
	"snap.licdn.com":        {},
	"dc.ads.linkedin.com":   {},
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"bat.bing.com":          {},
	"demdex.net":            {},
	"omtrdc.net":            {},
	"bluekai.com":           {},
	"hotjar.com":            {},
	"scorecardresearch.com": {},
}

// isTrackerHost reports whether host or one of its parent domains is listed.
func isTrackerHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

// blocker decides which tab requests are failed before they leave the browser.
type blocker struct {
	types    map[proto.NetworkResourceType]struct{}
	trackers bool
}

func newBlocker(cfg config.BrowserConfig) *blocker {
	b := &blocker{
		types:    make(map[proto.NetworkResourceType]struct{}, len(cfg.BlockedResources)),
		trackers: cfg.BlockTrackers,
	}
	for _, name := range cfg.BlockedResources {
		if rt, ok := resourceTypes[name]; ok {
			b.types[rt] = struct{}{}
		}
	}
	return b
}

func (b *blocker) empty() bool {
	return b == nil || (len(b.types) == 0 && !b.trackers)
}

// blocks reports whether a request of type rt to rawURL is dropped. The
// top-level document is never dropped.
func (b *blocker) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if b.empty() || rt == proto.NetworkResourceTypeDocument {
		return false
	}
	if _, ok := b.types[rt]; ok {
		return true
	}
	if b.trackers {
		if u, err := url.Parse(rawURL); err == nil && isTrackerHost(u.Hostname()) {
			return true
		}
	}
	return false
}

// install intercepts every request on page. It returns the running router,
// or nil when nothing is blocked; the caller stops it when the tab closes.
func (b *blocker) install(page *rod.Page) *rod.HijackRouter {
	if b.empty() {
		return nil
	}
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	// Run blocks until Stop.
	go router.Run()
	return router
}
