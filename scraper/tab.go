package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/profilr/extract"
)

// WaitUntil selects the lifecycle event Navigate waits for.
type WaitUntil int

const (
	WaitDOMContentLoaded WaitUntil = iota
	WaitNetworkIdle
)

// ErrLoadWait marks a navigation that committed but whose lifecycle wait did
// not finish before the context ended.
var ErrLoadWait = errors.New("load wait did not finish")

// ErrFetchStatus marks an in-page fetch answered with a non-2xx status.
var ErrFetchStatus = errors.New("unexpected fetch status")

// Tab is one browser tab. It is the Page extractors read plus the
// interactions the navigator needs.
type Tab interface {
	extract.Page

	// Navigate loads url and waits for the given lifecycle event.
	Navigate(ctx context.Context, url string, until WaitUntil) error

	// Visible reports, without waiting, whether q matches a visible element.
	Visible(ctx context.Context, q extract.Query) bool

	// Click clicks the element q matches.
	Click(ctx context.Context, q extract.Query) error

	// ScrollBy scrolls the window down by dy pixels and reports whether the
	// bottom of the document is in view.
	ScrollBy(ctx context.Context, dy int) (atBottom bool, err error)

	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)

	// FetchJSON GETs url from inside the page, so the request carries the
	// page's cookies, and returns the body of a 2xx answer.
	FetchJSON(ctx context.Context, url string) ([]byte, error)

	// Close closes the tab. Only the first call has an effect.
	Close() error
}

// Browser opens tabs. *Session is the production implementation.
type Browser interface {
	NewTab(ctx context.Context) (Tab, error)
}

// resolveJS finds the element a Query describes. It mirrors the snapshot
// resolver: filtered queries skip wrappers that contain a deeper match, and
// the sibling hop runs after filtering.
const resolveJS = `(q) => {
	const contains = (el, text) =>
		!text || (el.innerText || '').toLowerCase().includes(text.toLowerCase());
	const satisfies = (el, q) => contains(el, q.text) && (!q.has || resolve(el, q.has) !== null);
	const hop = (el, sibling) => {
		const s = sibling.trim();
		const sel = s.slice(1).trim();
		if (s[0] === '+') {
			const n = el.nextElementSibling;
			return n && n.matches(sel) ? n : null;
		}
		let n = el.nextElementSibling;
		while (n && !n.matches(sel)) n = n.nextElementSibling;
		return n;
	};
	function resolve(root, q) {
		const filtered = !!(q.text || q.has);
		for (const el of root.querySelectorAll(q.selector)) {
			if (!satisfies(el, q)) continue;
			if (filtered && Array.from(el.querySelectorAll(q.selector)).some((d) => satisfies(d, q))) continue;
			const target = q.sibling ? hop(el, q.sibling) : el;
			if (target) return target;
		}
		return null;
	}
	return resolve(document, q);
}`

const itemTextsJS = `(item, limit) =>
	Array.from(this.querySelectorAll(item)).slice(0, limit).map((el) => el.innerText || '')`

const scrollByJS = `(dy) => {
	window.scrollBy(0, dy);
	return window.scrollY + window.innerHeight >= document.body.scrollHeight;
}`

// fetchJSONJS sends the CSRF token the site derives from its JSESSIONID
// cookie; the API rejects requests without it.
const fetchJSONJS = `async (url) => {
	const m = document.cookie.match(/JSESSIONID="?([^";]+)/);
	const res = await fetch(url, {
		credentials: 'include',
		headers: {
			'accept': 'application/vnd.linkedin.normalized+json+2.1',
			'csrf-token': m ? m[1] : '',
			'x-restli-protocol-version': '2.0.0',
		},
	});
	return {status: res.status, body: await res.text()};
}`

type rodTab struct {
	page   *rod.Page
	probe  time.Duration
	router *rod.HijackRouter // nil when nothing is blocked

	closeOnce sync.Once
	closeErr  error
}

func newRodTab(page *rod.Page, probe time.Duration) *rodTab {
	return &rodTab{page: page, probe: probe}
}

func (t *rodTab) block(b *blocker) {
	t.router = b.install(t.page)
}

func (t *rodTab) URL() string {
	info, err := t.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (t *rodTab) Ready(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`() => document.readyState`)
	return err
}

func (t *rodTab) Navigate(ctx context.Context, url string, until WaitUntil) error {
	p := t.page.Context(ctx)

	event := proto.PageLifecycleEventNameDOMContentLoaded
	if until == WaitNetworkIdle {
		event = proto.PageLifecycleEventNameNetworkIdle
	}
	// The listener must exist before Navigate or the event can be missed.
	wait := p.WaitNavigation(event)

	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadWait, err)
	}
	return nil
}

func (t *rodTab) Text(ctx context.Context, q extract.Query) (string, error) {
	el, err := t.probeElement(ctx, q)
	if err != nil {
		return "", err
	}
	if visible, err := el.Visible(); err != nil || !visible {
		return "", extract.ErrNotFound
	}
	return el.Text()
}

func (t *rodTab) Attr(ctx context.Context, q extract.Query, name string) (string, error) {
	el, err := t.probeElement(ctx, q)
	if err != nil {
		return "", err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", extract.ErrNotFound
	}
	return *v, nil
}

func (t *rodTab) Texts(ctx context.Context, scope extract.Query, item string, limit int) ([]string, error) {
	el, err := t.probeElement(ctx, scope)
	if err != nil {
		return nil, err
	}
	if visible, err := el.Visible(); err != nil || !visible {
		return nil, extract.ErrNotFound
	}
	res, err := el.Eval(itemTextsJS, item, limit)
	if err != nil {
		return nil, err
	}
	items := res.Value.Arr()
	texts := make([]string, 0, len(items))
	for _, v := range items {
		texts = append(texts, v.Str())
	}
	return texts, nil
}

func (t *rodTab) Visible(ctx context.Context, q extract.Query) bool {
	el, err := t.element(t.page.Context(ctx).Sleeper(rod.NotFoundSleeper), q)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

func (t *rodTab) Click(ctx context.Context, q extract.Query) error {
	el, err := t.element(t.page.Context(ctx).Sleeper(rod.NotFoundSleeper), q)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (t *rodTab) ScrollBy(ctx context.Context, dy int) (bool, error) {
	res, err := t.page.Context(ctx).Eval(scrollByJS, dy)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (t *rodTab) Screenshot(ctx context.Context) ([]byte, error) {
	return t.page.Context(ctx).Screenshot(false, nil)
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	return t.page.Context(ctx).HTML()
}

func (t *rodTab) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	res, err := t.page.Context(ctx).Eval(fetchJSONJS, url)
	if err != nil {
		return nil, err
	}
	if status := res.Value.Get("status").Int(); status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: %d", ErrFetchStatus, status)
	}
	return []byte(res.Value.Get("body").Str()), nil
}

// Close uses the page without any request context so it still works after
// the scrape deadline has passed.
func (t *rodTab) Close() error {
	t.closeOnce.Do(func() {
		if t.router != nil {
			_ = t.router.Stop()
		}
		t.closeErr = t.page.Close()
	})
	return t.closeErr
}

// probeElement waits up to the probe timeout for q to match. Running out of
// probe time means the element is absent; running out of ctx does not.
func (t *rodTab) probeElement(ctx context.Context, q extract.Query) (*rod.Element, error) {
	probeCtx, cancel := context.WithTimeout(ctx, t.probe)
	defer cancel()

	el, err := t.element(t.page.Context(probeCtx), q)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, extract.ErrNotFound
	}
	if el != nil {
		// Detach from the probe deadline before the caller reads from it.
		el = el.Context(ctx)
	}
	return el, err
}

func (t *rodTab) element(p *rod.Page, q extract.Query) (*rod.Element, error) {
	el, err := p.ElementByJS(rod.Eval(resolveJS, q))
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, extract.ErrNotFound
		}
		return nil, err
	}
	return el, nil
}
