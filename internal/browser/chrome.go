package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"simstats-backend/internal/components/assert"
	"simstats-backend/internal/components/telemetry"
	"simstats-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	report_session_open           = "session.open"
	report_session_request_filter = "session.request-filter"
	report_session_close          = "session.close"
)

// ChromeLauncher starts a fresh headless chrome process for every session.
type ChromeLauncher struct {
	// ExecPath overrides the chrome binary chromedp would otherwise search for.
	ExecPath string

	tel telemetry.API
}

func NewChromeLauncher(execPath string, tel telemetry.API) ChromeLauncher {
	return ChromeLauncher{
		ExecPath: execPath,
		tel:      telemetry.NewScopedAPI("browser", tel),
	}
}

// flags for a restricted server environment: no os sandbox, no gpu,
// single process and nothing persisted between sessions.
func chromeFlags(execPath string) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
		chromedp.Flag("incognito", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

func (l ChromeLauncher) Open(ctx context.Context, opts Options) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromeFlags(l.ExecPath)...)
	return openSession(allocCtx, allocCancel, opts, l.tel)
}

// RemoteLauncher attaches to an already running chrome through its devtools websocket,
// every session gets its own tab in a fresh browser context which is disposed
// together with the tab.
type RemoteLauncher struct {
	URL string

	tel telemetry.API
}

func NewRemoteLauncher(devtoolsUrl string, tel telemetry.API) RemoteLauncher {
	assert.NotEmptyStr(devtoolsUrl, "devtools url")
	return RemoteLauncher{
		URL: devtoolsUrl,
		tel: telemetry.NewScopedAPI("browser", tel),
	}
}

func (l RemoteLauncher) Open(ctx context.Context, opts Options) (Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, l.URL)
	// cookies and storage of one session must not leak into the next
	return openSession(allocCtx, allocCancel, opts, l.tel, chromedp.WithNewBrowserContext())
}

type chromeSession struct {
	ctx         context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	filter      string
	tel         telemetry.API

	mutex     sync.Mutex
	mainFrame cdp.FrameID
	// idleLoaders holds the loaders that reached networkIdle since armIdle.
	idleLoaders map[cdp.LoaderID]bool
	idleNotify  chan struct{}
	closeOnce   sync.Once
}

func openSession(allocCtx context.Context, allocCancel context.CancelFunc, opts Options, tel telemetry.API, ctxOpts ...chromedp.ContextOption) (Session, error) {
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	s := &chromeSession{
		ctx: browserCtx,
		allocCancel: func() {
			browserCancel()
			allocCancel()
		},
		timeout:    opts.timeout(),
		filter:     opts.URLFilter,
		tel:        tel,
		idleNotify: make(chan struct{}, 1),
	}
	chromedp.ListenTarget(browserCtx, s.onEvent)

	// the first Run must use the browser context itself, a derived context
	// would kill the browser as soon as it is cancelled.
	err := chromedp.Run(
		browserCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			s.mutex.Lock()
			s.mainFrame = tree.Frame.ID
			s.mutex.Unlock()
			return nil
		}),
	)
	if err != nil {
		s.allocCancel()
		tel.ReportBroken(report_session_open, err)
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailure, err)
	}

	tel.ReportDebug("session opened", "filter", opts.URLFilter, "timeout", s.timeout.String())
	return s, nil
}

func (s *chromeSession) onEvent(ev any) {
	switch ev := ev.(type) {
	case *fetch.EventRequestPaused:
		// answering the event from inside the listener would deadlock the
		// event loop, so it has to happen on another goroutine.
		go s.filterRequest(ev)
	case *page.EventLifecycleEvent:
		if ev.Name != "networkIdle" {
			return
		}
		s.mutex.Lock()
		if ev.FrameID != s.mainFrame || s.idleLoaders == nil {
			s.mutex.Unlock()
			return
		}
		s.idleLoaders[ev.LoaderID] = true
		s.mutex.Unlock()

		select {
		case s.idleNotify <- struct{}{}:
		default:
		}
	}
}

func (s *chromeSession) filterRequest(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(s.ctx, c.Target)

	var err error
	if AllowRequest(s.filter, ev.Request.URL) {
		err = fetch.ContinueRequest(ev.RequestID).Do(ctx)
	} else {
		err = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)
	}
	if err != nil && s.ctx.Err() == nil {
		s.tel.ReportWarning(report_session_request_filter, err, ev.Request.URL)
	}
}

// armIdle must be called before the action that triggers the navigation,
// idle events of earlier documents are forgotten.
func (s *chromeSession) armIdle() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.idleLoaders = map[cdp.LoaderID]bool{}
}

// waitIdle blocks until the main frame document loaded by loader reaches networkIdle.
func (s *chromeSession) waitIdle(ctx context.Context, loader cdp.LoaderID) error {
	for {
		s.mutex.Lock()
		idle := s.idleLoaders[loader]
		s.mutex.Unlock()
		if idle {
			return nil
		}

		select {
		case <-s.idleNotify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// opContext derives the context for a single page operation, it is bounded by the
// session timeout and by the caller's context.
func (s *chromeSession) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	s.armIdle()
	var loader cdp.LoaderID
	_, err := chromedp.RunResponse(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, id, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		loader = id
		return nil
	}))
	if err != nil {
		return wrapTimeout(fmt.Errorf("navigate %s: %w", url, err))
	}
	// same document navigations have no loader and never go idle again
	if loader == "" {
		return nil
	}

	err = s.waitIdle(ctx, loader)
	if err != nil {
		return wrapTimeout(fmt.Errorf("wait network idle %s: %w", url, err))
	}
	return nil
}

func (s *chromeSession) WaitReady(ctx context.Context, selector string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		return wrapTimeout(fmt.Errorf("wait ready %s: %w", selector, err))
	}
	return nil
}

func (s *chromeSession) Type(ctx context.Context, selector, text string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
	if err != nil {
		return wrapTimeout(fmt.Errorf("type into %s: %w", selector, err))
	}
	return nil
}

func (s *chromeSession) ClickAndWait(ctx context.Context, selector string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := chromedp.RunResponse(ctx, chromedp.Click(selector, chromedp.ByQuery))
	if err != nil {
		return wrapTimeout(fmt.Errorf("click %s: %w", selector, err))
	}
	return nil
}

func (s *chromeSession) Anchors(ctx context.Context) ([]htmlutil.Anchor, error) {
	content, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	location, err := s.URL(ctx)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return htmlutil.GetAnchors(ctx, base, doc.Find("a")), nil
}

func (s *chromeSession) ClickAnchor(ctx context.Context, anchor htmlutil.Anchor) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var location string
	var nodes []*cdp.Node
	err := chromedp.Run(
		ctx,
		chromedp.Location(&location),
		chromedp.Nodes("a[href]", &nodes, chromedp.ByQueryAll),
	)
	if err != nil {
		return wrapTimeout(fmt.Errorf("query anchors: %w", err))
	}
	base, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}

	var target *cdp.Node
	for _, n := range nodes {
		href, ok := htmlutil.ResolveHref(base, n.AttributeValue("href"))
		if ok && href == anchor.Href {
			target = n
			break
		}
	}
	if target == nil {
		return fmt.Errorf("anchor %s is gone", anchor.Href)
	}

	_, err = chromedp.RunResponse(ctx, chromedp.MouseClickNode(target))
	if err != nil {
		return wrapTimeout(fmt.Errorf("click anchor %s: %w", anchor.Href, err))
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var out string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery))
	if err != nil {
		return "", wrapTimeout(fmt.Errorf("read html: %w", err))
	}
	return out, nil
}

func (s *chromeSession) URL(ctx context.Context) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var out string
	err := chromedp.Run(ctx, chromedp.Location(&out))
	if err != nil {
		return "", wrapTimeout(fmt.Errorf("read location: %w", err))
	}
	return out, nil
}

// Close shuts the browser down, it is safe to call more than once.
func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.allocCancel()
		if err != nil {
			s.tel.ReportWarning(report_session_close, err)
		}
	})
	return err
}
