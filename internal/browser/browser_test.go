package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/require"
)

func TestAllowRequest(t *testing.T) {
	table := []struct {
		filter   string
		url      string
		expected bool
	}{
		{filter: "docomo", url: "https://www.nttdocomo.co.jp/mydocomo/data", expected: true},
		{filter: "docomo", url: "https://www.google-analytics.com/collect", expected: false},
		{filter: "docomo", url: "https://www.nttdocomo.co.jp/img/logo.png", expected: false},
		{filter: "docomo", url: "https://www.nttdocomo.co.jp/img/photo.jpg", expected: false},
		{filter: "docomo", url: "https://www.nttdocomo.co.jp/img/anim.gif", expected: false},
		{filter: "docomo", url: "https://www.nttdocomo.co.jp/img/icon.svg", expected: true},
		{filter: "so-net", url: "https://www.so-net.ne.jp/retail/u/", expected: true},
		{filter: "", url: "https://anything.example.com/", expected: true},
	}

	for _, row := range table {
		require.Equal(t, row.expected, AllowRequest(row.filter, row.url), row.url)
	}
}

func TestWrapTimeout(t *testing.T) {
	require.NoError(t, wrapTimeout(nil))

	err := wrapTimeout(fmt.Errorf("wait ready: %w", context.DeadlineExceeded))
	require.ErrorIs(t, err, ErrNavigationTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	other := errors.New("node not found")
	require.Equal(t, other, wrapTimeout(other))
}

func TestWaitIdleMatchesLoader(t *testing.T) {
	s := &chromeSession{
		mainFrame:  cdp.FrameID("main"),
		idleNotify: make(chan struct{}, 1),
	}
	idle := func(frame, loader string) {
		s.onEvent(&page.EventLifecycleEvent{
			FrameID:  cdp.FrameID(frame),
			LoaderID: cdp.LoaderID(loader),
			Name:     "networkIdle",
		})
	}

	// events before armIdle are ignored
	idle("main", "next")
	s.armIdle()

	// a late event of the previous document or of a child frame does not count
	idle("main", "previous")
	idle("child", "next")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.waitIdle(ctx, "next"), context.DeadlineExceeded)

	go idle("main", "next")
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.waitIdle(ctx, "next"))
}

func TestNewRemoteLauncherRequiresUrl(t *testing.T) {
	require.Panics(t, func() {
		NewRemoteLauncher("", nil)
	})
}
