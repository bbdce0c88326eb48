package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type transition struct {
	from     string
	selector string
	page     string
}

// MockPage is an in-memory Page backed by named html documents. Clicking an
// element that matches a registered selector switches to another document,
// navigating to a registered url does the same. Form state changes (typed
// text, checked radios, selected options) are applied to the current
// document only. It never waits: conditions are checked once.
type MockPage struct {
	pages       map[string]string
	routes      map[string]string
	transitions []transition
	clickErrors map[string]error

	current string
	doc     *goquery.Document

	// Clicks lists the clicked elements as selector[index] in order.
	Clicks []string
	// Visited lists the documents shown in order, starting with the first.
	Visited     []string
	Navigations []string
	QuitCalls   int
}

// NewMockPage returns a page showing the document named start.
func NewMockPage(pages map[string]string, start string) (*MockPage, error) {
	m := &MockPage{
		pages:       pages,
		routes:      map[string]string{},
		clickErrors: map[string]error{},
	}
	if err := m.show(start); err != nil {
		return nil, err
	}
	return m, nil
}

// OnClick makes a click on any element matching selector show the
// document named page. Earlier registrations take precedence.
func (m *MockPage) OnClick(selector, page string) *MockPage {
	m.transitions = append(m.transitions, transition{selector: selector, page: page})
	return m
}

// OnClickFrom is OnClick limited to clicks while the document named from
// is shown.
func (m *MockPage) OnClickFrom(from, selector, page string) *MockPage {
	m.transitions = append(m.transitions, transition{from: from, selector: selector, page: page})
	return m
}

// OnNavigate makes Navigate(url) show the document named page.
func (m *MockPage) OnNavigate(url, page string) *MockPage {
	m.routes[url] = page
	return m
}

// FailClick makes clicks on elements matching selector return err.
func (m *MockPage) FailClick(selector string, err error) *MockPage {
	m.clickErrors[selector] = err
	return m
}

// Current returns the name of the document currently shown.
func (m *MockPage) Current() string {
	return m.current
}

func (m *MockPage) show(name string) error {
	content, ok := m.pages[name]
	if !ok {
		return fmt.Errorf("page %q not found", name)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return err
	}
	m.current = name
	m.doc = doc
	m.Visited = append(m.Visited, name)
	return nil
}

func (m *MockPage) find(el *Element) (*goquery.Selection, error) {
	s := m.doc.Find(el.Selector).Eq(el.Index)
	if s.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, el)
	}
	return s, nil
}

func visible(s *goquery.Selection) bool {
	return s.Closest("[hidden]").Length() == 0
}

func enabled(s *goquery.Selection) bool {
	_, disabled := s.Attr("disabled")
	return !disabled
}

func (m *MockPage) Locate(ctx context.Context, selector string) (*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.doc.Find(selector).Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return &Element{Selector: selector}, nil
}

func (m *MockPage) WaitFor(ctx context.Context, selector string, cond Condition, timeout time.Duration) (*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ok bool
	m.doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		switch cond {
		case ConditionPresent:
			ok = true
		case ConditionVisible:
			ok = visible(s)
		case ConditionClickable:
			ok = visible(s) && enabled(s)
		}
		return !ok
	})
	if !ok {
		return nil, fmt.Errorf("waiting for %s to be %s: %w after %v", selector, cond, ErrTimeout, timeout)
	}
	return &Element{Selector: selector}, nil
}

func (m *MockPage) Click(ctx context.Context, el *Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.find(el)
	if err != nil {
		return err
	}
	for sel, cerr := range m.clickErrors {
		if s.Is(sel) {
			return cerr
		}
	}
	m.Clicks = append(m.Clicks, el.String())

	switch {
	case s.Is("input[type=radio]"):
		name, _ := s.Attr("name")
		m.doc.Find("input[type=radio]").Each(func(_ int, r *goquery.Selection) {
			if n, _ := r.Attr("name"); n == name {
				r.RemoveAttr("checked")
			}
		})
		s.SetAttr("checked", "")
	case s.Is("input[type=checkbox]"):
		if _, checked := s.Attr("checked"); checked {
			s.RemoveAttr("checked")
		} else {
			s.SetAttr("checked", "")
		}
	case s.Is("option"):
		s.Siblings().RemoveAttr("selected")
		s.SetAttr("selected", "")
	}

	if !enabled(s) {
		return nil
	}
	for _, t := range m.transitions {
		if (t.from == "" || t.from == m.current) && s.Is(t.selector) {
			return m.show(t.page)
		}
	}
	return nil
}

func (m *MockPage) TypeText(ctx context.Context, el *Element, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.find(el)
	if err != nil {
		return err
	}
	if !s.Is("input, textarea") {
		return fmt.Errorf("cannot type into %s", el)
	}
	s.SetAttr("value", s.AttrOr("value", "")+text)
	return nil
}

func (m *MockPage) ReadText(ctx context.Context, el *Element) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := m.find(el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s.Text()), nil
}

func (m *MockPage) Attribute(ctx context.Context, el *Element, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s, err := m.find(el)
	if err != nil {
		return "", false, err
	}
	v, ok := s.Attr(name)
	return v, ok, nil
}

func (m *MockPage) SelectOption(ctx context.Context, el *Element, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.find(el)
	if err != nil {
		return err
	}
	options := s.Find("option")
	if index < 0 || index >= options.Length() {
		return fmt.Errorf("%w: option %d of %s", ErrNotFound, index, el)
	}
	options.RemoveAttr("selected")
	options.Eq(index).SetAttr("selected", "")
	return nil
}

func (m *MockPage) ListAll(ctx context.Context, selector string) ([]*Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elements := []*Element{}
	m.doc.Find(selector).Each(func(i int, _ *goquery.Selection) {
		elements = append(elements, &Element{Selector: selector, Index: i})
	})
	return elements, nil
}

func (m *MockPage) HTML(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s := m.doc.Find(selector).First()
	if s.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return goquery.OuterHtml(s)
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Navigations = append(m.Navigations, url)
	page, ok := m.routes[url]
	if !ok {
		return fmt.Errorf("page not found: %s", url)
	}
	return m.show(page)
}

func (m *MockPage) Quit() error {
	m.QuitCalls++
	return nil
}
