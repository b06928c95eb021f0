package simstats

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"simstats-backend/internal/browser"
	"simstats-backend/lib/htmlutil"
	"simstats-backend/lib/kvstore"

	"github.com/PuerkitoBio/goquery"
)

// fakeSite is a set of static documents keyed by url, clicks maps a selector
// on a given url to the url it navigates to.
type fakeSite struct {
	pages  map[string]string
	clicks map[string]map[string]string
}

type fakePage struct {
	site    fakeSite
	current string
	typed   map[string]string
	visited []string
	closed  int
}

func newFakePage(site fakeSite) *fakePage {
	return &fakePage{site: site, typed: map[string]string{}}
}

func (p *fakePage) document() (*goquery.Document, error) {
	html, ok := p.site.pages[p.current]
	if !ok {
		return nil, fmt.Errorf("no page at %q", p.current)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (p *fakePage) goTo(target string) error {
	if _, ok := p.site.pages[target]; !ok {
		return fmt.Errorf("%w: %s never settled", browser.ErrNavigationTimeout, target)
	}
	p.current = target
	p.visited = append(p.visited, target)
	return nil
}

func (p *fakePage) has(selector string) error {
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: waiting for %s", browser.ErrNavigationTimeout, selector)
	}
	return nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.goTo(url)
}

func (p *fakePage) WaitReady(ctx context.Context, selector string) error {
	return p.has(selector)
}

func (p *fakePage) Type(ctx context.Context, selector, text string) error {
	err := p.has(selector)
	if err != nil {
		return err
	}
	p.typed[selector] = text
	return nil
}

func (p *fakePage) ClickAndWait(ctx context.Context, selector string) error {
	err := p.has(selector)
	if err != nil {
		return err
	}
	target, ok := p.site.clicks[p.current][selector]
	if !ok {
		return fmt.Errorf("%w: click on %s did not navigate", browser.ErrNavigationTimeout, selector)
	}
	return p.goTo(target)
}

func (p *fakePage) Anchors(ctx context.Context) ([]htmlutil.Anchor, error) {
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(p.current)
	if err != nil {
		return nil, err
	}
	return htmlutil.GetAnchors(ctx, base, doc.Find("a")), nil
}

func (p *fakePage) ClickAnchor(ctx context.Context, anchor htmlutil.Anchor) error {
	return p.goTo(anchor.Href)
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	html, ok := p.site.pages[p.current]
	if !ok {
		return "", fmt.Errorf("no page at %q", p.current)
	}
	return html, nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	return p.current, nil
}

func (p *fakePage) Close() error {
	p.closed++
	return nil
}

type fakeLauncher struct {
	site    fakeSite
	err     error
	panics  bool
	opened  []browser.Options
	session *fakePage
}

func (l *fakeLauncher) Open(ctx context.Context, opts browser.Options) (browser.Session, error) {
	if l.panics {
		panic("chrome exploded")
	}
	l.opened = append(l.opened, opts)
	if l.err != nil {
		return nil, l.err
	}
	l.session = newFakePage(l.site)
	return l.session, nil
}

type memoryStore struct {
	mutex   sync.Mutex
	values  map[string]string
	failPut map[string]bool
	failGet map[string]bool
	openErr error
	opened  int
	closed  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		values:  map[string]string{},
		failPut: map[string]bool{},
		failGet: map[string]bool{},
	}
}

func (m *memoryStore) Open(ctx context.Context) (kvstore.Store, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return memoryConn{m}, nil
}

type memoryConn struct {
	m *memoryStore
}

func (c memoryConn) Put(ctx context.Context, path string, value int64) error {
	c.m.mutex.Lock()
	defer c.m.mutex.Unlock()
	if c.m.failPut[path] {
		return fmt.Errorf("503 Service Unavailable")
	}
	c.m.values[path] = fmt.Sprint(value)
	return nil
}

func (c memoryConn) Get(ctx context.Context, path string) ([]byte, error) {
	c.m.mutex.Lock()
	defer c.m.mutex.Unlock()
	if c.m.failGet[path] {
		return nil, fmt.Errorf("503 Service Unavailable")
	}
	value, ok := c.m.values[path]
	if !ok {
		return []byte("null"), nil
	}
	return []byte(value), nil
}

func (c memoryConn) Close() error {
	c.m.mutex.Lock()
	defer c.m.mutex.Unlock()
	c.m.closed++
	return nil
}

const dcmTop = "https://www.nttdocomo.co.jp/mydocomo/data"
const dcmAuth = "https://www.nttdocomo.co.jp/auth/cgi/idauth?url=https://www.nttdocomo.co.jp/mydocomo/data"

func dcmSite(landing string) fakeSite {
	return fakeSite{
		pages: map[string]string{
			dcmTop: `<html><body>
				<a href="https://www.nttdocomo.co.jp/support/">support</a>
				<a href="https://www.nttdocomo.co.jp/auth/cgi/idauth?url=https%3A%2F%2Fwww.nttdocomo.co.jp%2Fmydocomo%2Fdata">ログイン</a>
				<a href="https://www.nttdocomo.co.jp/auth/cgi/idauth?url=https%3A%2F%2Fwww.nttdocomo.co.jp%2Fmydocomo%2Fdata">ログインする</a>
			</body></html>`,
			dcmAuth: `<html><body><form>
				<input id="Di_Uid" type="text">
				<input class="button_submit nextaction" type="submit">
			</form></body></html>`,
			"https://www.nttdocomo.co.jp/auth/cgi/pass": `<html><body><form>
				<input id="Di_Pass" type="password">
				<input class="button_submit nextaction" type="submit">
			</form></body></html>`,
			"https://www.nttdocomo.co.jp/mydocomo/data/landing": landing,
		},
		clicks: map[string]map[string]string{
			dcmAuth: {
				"input.button_submit.nextaction": "https://www.nttdocomo.co.jp/auth/cgi/pass",
			},
			"https://www.nttdocomo.co.jp/auth/cgi/pass": {
				"input.button_submit.nextaction": "https://www.nttdocomo.co.jp/mydocomo/data/landing",
			},
		},
	}
}

const dcmLanding = `<html><body>
	<section id="mydcm_data_data"><div class="in-data-use"><span class="card-t-number">3.25</span>GB</div></section>
	<section id="mydcm_data_3day">
		<div id="mydcm_data_3day-03"><dl class="mydcm_data_3day-03-02"><dd><span class="card-t-ssnumber">0.41</span>GB</dd></dl></div>
	</section>
</body></html>`

const nuroLogin = "https://mobile.nuro.jp/mobile_contract/u/login/"

func nuroSite(landing string) fakeSite {
	return fakeSite{
		pages: map[string]string{
			nuroLogin: `<html><body><form>
				<input id="simNumber"><input id="simPassword" type="password">
				<input id="simSubmit" type="submit">
			</form></body></html>`,
			"https://mobile.nuro.jp/mobile_contract/u/top/": landing,
		},
		clicks: map[string]map[string]string{
			nuroLogin: {"input#simSubmit": "https://mobile.nuro.jp/mobile_contract/u/top/"},
		},
	}
}

func nuroLanding(month, day string) string {
	dayBlock := ""
	if day != "" {
		dayBlock = fmt.Sprintf(`<div class="siyou"><p class="data"><span class="yen">%s</span></p></div>`, day)
	}
	return fmt.Sprintf(`<html><body><div id="main"><div class="container"><section><div class="indexBox">
		<div class="float"><div class="block right zyokyo"><ul class="zyokyoBlock">
			<li><ul><li><p class="data"><span class="yen">%s</span></p></li></ul></li>
			<li>
				<div class="siyou"><p class="data"><span class="yen">5MB</span></p></div>
				%s
			</li>
		</ul></div></div>
	</div></section></div></div></body></html>`, month, dayBlock)
}
