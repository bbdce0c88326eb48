package browser

import (
	"context"
	"errors"
	"slices"
	"testing"
)

var (
	_ Page   = (*MockPage)(nil)
	_ Page   = (*ChromePage)(nil)
	_ Dumper = (*ChromePage)(nil)
)

const formHTML = `<html><body>
<div id="form">
	<input type="text" name="city" value="Ber">
	<input type="radio" name="a" value="1" checked><input type="radio" name="a" value="2">
	<select name="s"><option>--</option><option>one</option></select>
	<button class="next">Next</button>
	<button class="off" disabled>Off</button>
	<div hidden><button class="ghost">Ghost</button></div>
</div>
</body></html>`

func newTestPage(t *testing.T) *MockPage {
	t.Helper()
	m, err := NewMockPage(map[string]string{"form": formHTML, "done": "<html><body><p>done</p></body></html>"}, "form")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestMockWaitFor(t *testing.T) {
	m := newTestPage(t)
	tests := []struct {
		selector string
		cond     Condition
		wantErr  bool
	}{
		{"button.next", ConditionClickable, false},
		{"button.off", ConditionPresent, false},
		{"button.off", ConditionVisible, false},
		{"button.off", ConditionClickable, true},
		{"button.ghost", ConditionPresent, false},
		{"button.ghost", ConditionVisible, true},
		{"button.missing", ConditionPresent, true},
	}
	for _, tt := range tests {
		_, err := m.WaitFor(context.Background(), tt.selector, tt.cond, 0)
		if (err != nil) != tt.wantErr {
			t.Errorf("WaitFor(%s, %s): expected error %v, got %v", tt.selector, tt.cond, tt.wantErr, err)
		}
		if err != nil && !errors.Is(err, ErrTimeout) {
			t.Errorf("WaitFor(%s, %s): expected ErrTimeout, got %v", tt.selector, tt.cond, err)
		}
	}
}

func TestMockLocate(t *testing.T) {
	m := newTestPage(t)
	if _, err := m.Locate(context.Background(), "button.next"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := m.Locate(context.Background(), "button.missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMockFormState(t *testing.T) {
	m := newTestPage(t)
	ctx := context.Background()

	if err := m.TypeText(ctx, &Element{Selector: "input[name=city]"}, "lin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _, _ := m.Attribute(ctx, &Element{Selector: "input[name=city]"}, "value"); v != "Berlin" {
		t.Errorf("expected typed text to be appended, got %q", v)
	}

	if err := m.Click(ctx, &Element{Selector: "input[name=a]", Index: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, checked, _ := m.Attribute(ctx, &Element{Selector: "input[name=a]", Index: 0}, "checked"); checked {
		t.Errorf("expected first radio to be unchecked")
	}
	if _, checked, _ := m.Attribute(ctx, &Element{Selector: "input[name=a]", Index: 1}, "checked"); !checked {
		t.Errorf("expected second radio to be checked")
	}

	if err := m.SelectOption(ctx, &Element{Selector: "select"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, selected, _ := m.Attribute(ctx, &Element{Selector: "select option", Index: 1}, "selected"); !selected {
		t.Errorf("expected second option to be selected")
	}
	if err := m.SelectOption(ctx, &Element{Selector: "select"}, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing option, got %v", err)
	}
}

func TestMockTransitions(t *testing.T) {
	m := newTestPage(t)
	m.OnClick("button", "done").OnNavigate("https://example.com/done", "done")
	ctx := context.Background()

	// disabled controls do not react
	if err := m.Click(ctx, &Element{Selector: "button.off"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Current() != "form" {
		t.Errorf("expected to stay on form, got %s", m.Current())
	}
	if err := m.Click(ctx, &Element{Selector: "button.next"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Current() != "done" {
		t.Errorf("expected to be on done, got %s", m.Current())
	}
	if err := m.Navigate(ctx, "https://example.com/nowhere"); err == nil {
		t.Errorf("expected an error for an unknown url")
	}
	if err := m.Navigate(ctx, "https://example.com/done"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	expected := []string{"form", "done", "done"}
	if !slices.Equal(m.Visited, expected) {
		t.Errorf("expected visits %v, got %v", expected, m.Visited)
	}
	expectedClicks := []string{"button.off[0]", "button.next[0]"}
	if !slices.Equal(m.Clicks, expectedClicks) {
		t.Errorf("expected clicks %v, got %v", expectedClicks, m.Clicks)
	}
}

func TestMockCancelledContext(t *testing.T) {
	m := newTestPage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Locate(ctx, "button.next"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := m.Click(ctx, &Element{Selector: "button.next"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"run-001-42", "run-001-42"},
		{"page1/item 2", "page1_item_2"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q; want %q", tt.input, got, tt.expected)
		}
	}
}
