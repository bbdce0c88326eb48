package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/goapply/internal/log"
)

// syncFormStateJS mirrors the live state of form controls into attributes
// so that the outer html shows what the user would see.
const syncFormStateJS = `document.querySelectorAll('input,textarea,select').forEach(function(e) {
	if (e.tagName === 'SELECT') {
		Array.from(e.options).forEach(function(o) {
			if (o.selected) { o.setAttribute('selected', ''); } else { o.removeAttribute('selected'); }
		});
		return;
	}
	if (e.type === 'radio' || e.type === 'checkbox') {
		if (e.checked) { e.setAttribute('checked', ''); } else { e.removeAttribute('checked'); }
		return;
	}
	e.setAttribute('value', e.value);
});`

// The ChromePage drives a single chrome tab through the devtools protocol.
type ChromePage struct {
	*Config
	allocContext context.Context
	cancelAlloc  context.CancelFunc
	tabContext   context.Context
	cancelTab    context.CancelFunc
	quitOnce     sync.Once
	quitErr      error
}

// NewChromePage starts chrome and opens the tab that all operations of the
// returned page run in.
func NewChromePage(ctx context.Context, c *Config) (*ChromePage, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("browser", "chrome"))
	width, height := c.WindowWidth, c.WindowHeight
	if width == 0 || height == 0 {
		width, height = 1920, 1080
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(width, height), // the wizard is missing controls in the mobile layout
		chromedp.Flag("disable-notifications", true),
	)
	if c.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if c.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-dev-shm-usage", true))
	}
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}
	if c.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(c.UserDataDir))
	}
	allocContext, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabContext, cancelTab := chromedp.NewContext(allocContext)

	// the first Run allocates the browser and the tab
	if err := chromedp.Run(tabContext); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	if log.Debug {
		_ = chromedp.Run(tabContext, chromedp.ActionFunc(func(ctx context.Context) error {
			protocolVersion, product, revision, userAgent, jsVersion, err := cdpbrowser.GetVersion().Do(ctx)
			if err != nil {
				logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
				return nil
			}
			logger.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s, revision=%s, userAgent=%s, jsVersion=%s",
				protocolVersion, product, revision, userAgent, jsVersion))
			return nil
		}))
	}

	return &ChromePage{
		Config:       c,
		allocContext: allocContext,
		cancelAlloc:  cancelAlloc,
		tabContext:   tabContext,
		cancelTab:    cancelTab,
	}, nil
}

// run executes actions in the tab. It is aborted when ctx is done or, if
// timeout is positive, when timeout elapses.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.tabContext, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.tabContext)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return err
}

func (p *ChromePage) nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, 0, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (p *ChromePage) resolve(ctx context.Context, el *Element) (*cdp.Node, error) {
	if el.node != nil {
		return el.node, nil
	}
	nodes, err := p.nodes(ctx, el.Selector)
	if err != nil {
		return nil, err
	}
	if el.Index >= len(nodes) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, el)
	}
	el.node = nodes[el.Index]
	return el.node, nil
}

func (p *ChromePage) Locate(ctx context.Context, selector string) (*Element, error) {
	nodes, err := p.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return &Element{Selector: selector, node: nodes[0]}, nil
}

func (p *ChromePage) WaitFor(ctx context.Context, selector string, cond Condition, timeout time.Duration) (*Element, error) {
	var actions []chromedp.Action
	switch cond {
	case ConditionPresent:
		actions = append(actions, chromedp.WaitReady(selector, chromedp.ByQuery))
	case ConditionVisible:
		actions = append(actions, chromedp.WaitVisible(selector, chromedp.ByQuery))
	case ConditionClickable:
		actions = append(actions,
			chromedp.WaitVisible(selector, chromedp.ByQuery),
			chromedp.WaitEnabled(selector, chromedp.ByQuery),
		)
	default:
		return nil, fmt.Errorf("unknown wait condition %s", cond)
	}
	if err := p.run(ctx, timeout, actions...); err != nil {
		return nil, fmt.Errorf("waiting for %s to be %s: %w", selector, cond, err)
	}
	return p.Locate(ctx, selector)
}

func (p *ChromePage) Click(ctx context.Context, el *Element) error {
	n, err := p.resolve(ctx, el)
	if err != nil {
		return err
	}
	return p.run(ctx, 0, chromedp.MouseClickNode(n))
}

func (p *ChromePage) TypeText(ctx context.Context, el *Element, text string) error {
	n, err := p.resolve(ctx, el)
	if err != nil {
		return err
	}
	return p.run(ctx, 0, chromedp.SendKeys([]cdp.NodeID{n.NodeID}, text, chromedp.ByNodeID))
}

func (p *ChromePage) ReadText(ctx context.Context, el *Element) (string, error) {
	n, err := p.resolve(ctx, el)
	if err != nil {
		return "", err
	}
	var text string
	if err := p.run(ctx, 0, chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *ChromePage) Attribute(ctx context.Context, el *Element, name string) (string, bool, error) {
	n, err := p.resolve(ctx, el)
	if err != nil {
		return "", false, err
	}
	var value string
	var ok bool
	if err := p.run(ctx, 0, chromedp.AttributeValue([]cdp.NodeID{n.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (p *ChromePage) SelectOption(ctx context.Context, el *Element, index int) error {
	js := fmt.Sprintf(`(function() {
	const s = document.querySelectorAll(%q)[%d];
	if (!s || s.options.length <= %d) { return false; }
	s.selectedIndex = %d;
	s.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`, el.Selector, el.Index, index, index)
	var ok bool
	if err := p.run(ctx, 0, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: option %d of %s", ErrNotFound, index, el)
	}
	return nil
}

func (p *ChromePage) ListAll(ctx context.Context, selector string) ([]*Element, error) {
	nodes, err := p.nodes(ctx, selector)
	if err != nil {
		return nil, err
	}
	elements := make([]*Element, 0, len(nodes))
	for i, n := range nodes {
		elements = append(elements, &Element{Selector: selector, Index: i, node: n})
	}
	return elements, nil
}

func (p *ChromePage) HTML(ctx context.Context, selector string) (string, error) {
	el, err := p.Locate(ctx, selector)
	if err != nil {
		return "", err
	}
	var html string
	err = p.run(ctx, 0,
		chromedp.Evaluate(syncFormStateJS, nil),
		chromedp.OuterHTML([]cdp.NodeID{el.node.NodeID}, &html, chromedp.ByNodeID),
	)
	return html, err
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	log.LoggerFromContext(ctx).Debug("navigating", slog.String("url", url))
	return p.run(ctx, p.navigationTimeout(), chromedp.Navigate(url))
}

// Quit closes the tab and shuts chrome down.
func (p *ChromePage) Quit() error {
	p.quitOnce.Do(func() {
		p.quitErr = chromedp.Cancel(p.tabContext)
		p.cancelTab()
		p.cancelAlloc()
	})
	return p.quitErr
}

// Dump writes a screenshot and the html of the current document to the
// debug directory.
func (p *ChromePage) Dump(ctx context.Context, name string) error {
	logger := log.LoggerFromContext(ctx)
	if err := os.MkdirAll(p.DebugDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create debug directory: %v", err)
	}
	base := path.Join(p.DebugDir, fmt.Sprintf("%s-%s", sanitizeFilename(name), time.Now().Format("20060102-150405")))

	var screenshot []byte
	var body string
	err := p.run(ctx, p.navigationTimeout(),
		chromedp.CaptureScreenshot(&screenshot),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("writing screenshot and html to %s.{png,html}", base))
	if err := os.WriteFile(base+".png", screenshot, 0644); err != nil {
		return err
	}
	return os.WriteFile(base+".html", []byte(body), 0644)
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
