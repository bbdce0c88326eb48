package paginator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
)

var testSelectors = config.Selectors{
	ListingItem: ".listing",
	NextPage:    "button.next",
}

// resultsPage renders a result page with the given job ids and next control.
func resultsPage(next string, ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<li class="listing" data-occludable-job-id="%s">Job %s</li>`, id, id)
	}
	b.WriteString("</ul>")
	b.WriteString(next)
	b.WriteString("</body></html>")
	return b.String()
}

func collect(t *testing.T, p *Paginator) [][]string {
	t.Helper()
	pages := [][]string{}
	for {
		listings, err := p.NextPage(context.Background())
		if errors.Is(err, ErrEndOfResults) {
			return pages
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids := []string{}
		for _, l := range listings {
			if l.Page != len(pages)+1 {
				t.Errorf("listing %s has page %d, expected %d", l.ID, l.Page, len(pages)+1)
			}
			ids = append(ids, l.ID)
		}
		pages = append(pages, ids)
	}
}

func TestNextPage(t *testing.T) {
	const next = `<button class="next">Next</button>`
	tests := []struct {
		name     string
		pages    map[string]string
		maxPages int
		expected [][]string
	}{
		{
			name: "stops at page limit",
			pages: map[string]string{
				"p1": resultsPage(next, "1", "2"),
				"p2": resultsPage(next, "3", "4"),
				"p3": resultsPage(next, "5"),
			},
			maxPages: 2,
			expected: [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name: "stops when next is missing",
			pages: map[string]string{
				"p1": resultsPage(next, "1", "2"),
				"p2": resultsPage(``, "3"),
			},
			maxPages: 5,
			expected: [][]string{{"1", "2"}, {"3"}},
		},
		{
			name: "no next control on first page",
			pages: map[string]string{
				"p1": resultsPage(``, "1", "2", "3"),
			},
			maxPages: 10,
			expected: [][]string{{"1", "2", "3"}},
		},
		{
			name: "stops when next is disabled",
			pages: map[string]string{
				"p1": resultsPage(`<button class="next" disabled>Next</button>`, "1"),
			},
			maxPages: 5,
			expected: [][]string{{"1"}},
		},
		{
			name: "stops when next is aria disabled",
			pages: map[string]string{
				"p1": resultsPage(`<button class="next" aria-disabled="true">Next</button>`, "1"),
			},
			maxPages: 5,
			expected: [][]string{{"1"}},
		},
		{
			name: "single page",
			pages: map[string]string{
				"p1": resultsPage(next, "1", "2", "3"),
			},
			maxPages: 1,
			expected: [][]string{{"1", "2", "3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := browser.NewMockPage(tt.pages, "p1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i := 1; i < len(tt.pages); i++ {
				m.OnClickFrom(fmt.Sprintf("p%d", i), "button.next", fmt.Sprintf("p%d", i+1))
			}

			got := collect(t, New(m, testSelectors, tt.maxPages, 0))

			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d pages, got %d: %v", len(tt.expected), len(got), got)
			}
			for i := range got {
				if !slices.Equal(got[i], tt.expected[i]) {
					t.Errorf("page %d: expected %v, got %v", i+1, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestNextPageAfterEndKeepsEnding(t *testing.T) {
	m, err := browser.NewMockPage(map[string]string{"p1": resultsPage("", "1")}, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := New(m, testSelectors, 3, 0)
	if _, err := p.NextPage(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := p.NextPage(context.Background()); !errors.Is(err, ErrEndOfResults) {
			t.Errorf("expected ErrEndOfResults, got %v", err)
		}
	}
	if p.Page() != 1 {
		t.Errorf("expected to stay on page 1, got %d", p.Page())
	}
}

func TestNextPageFallbackIDs(t *testing.T) {
	html := `<html><body><ul>
<li class="listing" data-job-id="77">A</li>
<li class="listing">B</li>
</ul></body></html>`
	m, err := browser.NewMockPage(map[string]string{"p1": html}, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	listings, err := New(m, testSelectors, 1, 0).NextPage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := []string{}
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	expected := []string{"77", "page1-item2"}
	if !slices.Equal(ids, expected) {
		t.Errorf("expected ids %v, got %v", expected, ids)
	}
}

func TestNextPageStopsWhenResultsDoNotChange(t *testing.T) {
	const next = `<button class="next">Next</button>`
	m, err := browser.NewMockPage(map[string]string{"p1": resultsPage(next, "1", "2")}, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// clicking next shows the same results again
	got := collect(t, New(m, testSelectors, 3, 0))
	if len(got) != 1 {
		t.Errorf("expected the unchanged page to be processed once, got %v", got)
	}
}

func TestNextPageCancelled(t *testing.T) {
	m, err := browser.NewMockPage(map[string]string{"p1": resultsPage("", "1")}, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(m, testSelectors, 1, 0).NextPage(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
