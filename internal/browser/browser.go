// Package browser manages the headless browser that drives the provider portals.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"simstats-backend/lib/htmlutil"
)

var (
	ErrLaunchFailure     = errors.New("browser: launch failure")
	ErrNavigationTimeout = errors.New("browser: navigation timeout")
)

// DefaultTimeout bounds every navigation and selector wait.
const DefaultTimeout = 60 * time.Second

type Options struct {
	// URLFilter is the substring every allowed request url must contain,
	// an empty filter allows every host.
	URLFilter string
	// Timeout is applied to every page operation, zero means DefaultTimeout.
	Timeout time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Page is the set of operations the login driver and the usage extractor need.
//
// note: fault injection point
type Page interface {
	// Navigate loads url and waits until the network has gone idle.
	Navigate(ctx context.Context, url string) error
	// WaitReady waits until selector matches an element in the DOM.
	WaitReady(ctx context.Context, selector string) error
	// Type sends text to the element matched by selector.
	Type(ctx context.Context, selector, text string) error
	// ClickAndWait clicks the element matched by selector and blocks until the
	// navigation it triggered has finished loading.
	ClickAndWait(ctx context.Context, selector string) error
	// Anchors lists every <a href> in the document, hrefs are absolute and decoded.
	Anchors(ctx context.Context) ([]htmlutil.Anchor, error)
	// ClickAnchor clicks the anchor returned by Anchors and waits for the navigation.
	ClickAnchor(ctx context.Context, anchor htmlutil.Anchor) error
	// HTML returns the outer html of the current document.
	HTML(ctx context.Context) (string, error)
	// URL returns the url of the current document.
	URL(ctx context.Context) (string, error)
}

// Session is a page owned by its own browser instance, Close releases both.
type Session interface {
	Page
	Close() error
}

// Launcher creates sessions, every call produces an isolated browser.
type Launcher interface {
	Open(ctx context.Context, opts Options) (Session, error)
}

var blockedExtensions = []string{".png", ".jpg", ".gif"}

// AllowRequest reports whether a request to rawUrl passes the filter: the url must
// contain filter and must not fetch an image asset.
func AllowRequest(filter, rawUrl string) bool {
	if !strings.Contains(rawUrl, filter) {
		return false
	}
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(rawUrl, ext) {
			return false
		}
	}
	return true
}

// wrapTimeout converts deadline errors into ErrNavigationTimeout.
func wrapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrNavigationTimeout, err)
	}
	return err
}
