package crawler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"sjsage522/flightdealworker/logger"
	crawlerrors "sjsage522/flightdealworker/pkg/errors"
)

// DefaultExpandLabels are the texts of controls that reveal more listings
var DefaultExpandLabels = []string{"עוד", "הצג עוד", "טען עוד", "more", "More", "Show more", "Load more"}

const maxExpandRounds = 3

// expandScript clicks every short button or link whose text contains one of the labels
const expandScript = `(labels) => {
	let clicked = 0;
	for (const el of document.querySelectorAll('button, a, [role="button"]')) {
		const text = (el.innerText || '').trim();
		if (text.length > 0 && text.length < 40 && labels.some(l => text.includes(l))) {
			el.click();
			clicked++;
		}
	}
	return clicked;
}`

// BrowserFetcher renders pages in headless Chrome through rod
type BrowserFetcher struct {
	// RemoteURL is the DevTools endpoint of an external Chrome. Empty launches a local one.
	RemoteURL    string
	Timeout      time.Duration
	ExpandLabels []string
	log          *logger.Logger
}

// NewBrowserFetcher creates a fetcher for remoteURL, or for a locally launched Chrome when empty
func NewBrowserFetcher(remoteURL string) *BrowserFetcher {
	return &BrowserFetcher{
		RemoteURL:    remoteURL,
		Timeout:      45 * time.Second,
		ExpandLabels: DefaultExpandLabels,
		log:          logger.ForCrawler("browser"),
	}
}

// connect returns a browser handle and a function releasing it
func (b *BrowserFetcher) connect(ctx context.Context) (*rod.Browser, func(), error) {
	var (
		wsURL string
		lnch  *launcher.Launcher
		err   error
	)

	if b.RemoteURL != "" {
		wsURL, err = launcher.ResolveURL(b.RemoteURL)
		if err != nil {
			return nil, nil, fmt.Errorf("browser: resolve %s: %w", b.RemoteURL, err)
		}
	} else {
		lnch = launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		wsURL, err = lnch.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("browser: launch: %w", err)
		}
	}

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}

	release := func() {
		if err := browser.Close(); err != nil {
			b.log.Debug().Err(err).Msg("Browser close failed")
		}
		if lnch != nil {
			lnch.Cleanup()
		}
	}
	return browser, release, nil
}

// Render loads url and returns the rendered HTML. With expand set it first
// clicks the "show more" controls until none are left or the round limit is hit.
func (b *BrowserFetcher) Render(ctx context.Context, url string, expand bool) ([]byte, error) {
	browser, release, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		b.log.Warn().Err(err).Str("url", url).Msg("Wait load timeout")
	}
	if err := p.WaitIdle(5 * time.Second); err != nil {
		b.log.Debug().Err(err).Msg("Page did not go idle")
	}

	if expand {
		b.expand(p)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(html), nil
}

func (b *BrowserFetcher) expand(p *rod.Page) {
	for round := 0; round < maxExpandRounds; round++ {
		res, err := p.Eval(expandScript, b.ExpandLabels)
		if err != nil {
			b.log.Warn().Err(err).Msg("Expand script failed")
			return
		}
		clicked := res.Value.Int()
		b.log.Debug().Int("round", round).Int("clicked", clicked).Msg("Expanded listings")
		if clicked == 0 {
			return
		}
		if err := p.WaitIdle(3 * time.Second); err != nil {
			b.log.Debug().Err(err).Msg("Page did not go idle after expanding")
		}
	}
}

// browserExpander re-renders one URL with expansion enabled
type browserExpander struct {
	fetcher *BrowserFetcher
	url     string
}

func (e *browserExpander) Expand(ctx context.Context) ([]byte, error) {
	return e.fetcher.Render(ctx, e.url, true)
}

// BrowserSource retrieves the page through headless Chrome so script-rendered listings are visible
type BrowserSource struct {
	*BaseCrawler
	Browser *BrowserFetcher
	now     func() time.Time
}

// NewBrowserSource creates a browser source guarded by base
func NewBrowserSource(base *BaseCrawler, fetcher *BrowserFetcher) *BrowserSource {
	return &BrowserSource{BaseCrawler: base, Browser: fetcher, now: time.Now}
}

// Fetch implements Source
func (s *BrowserSource) Fetch(ctx context.Context) (*Page, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	body, err := s.Browser.Render(ctx, s.URL, false)
	if err != nil {
		return nil, crawlerrors.NewRetrieval(s.Provider, "render page", err)
	}

	doc, err := s.createDocument(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:       s.URL,
		HTML:      body,
		Doc:       doc,
		FetchedAt: s.now(),
		Expander:  &browserExpander{fetcher: s.Browser, url: s.URL},
	}, nil
}
