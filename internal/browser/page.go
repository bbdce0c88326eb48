// Package browser provides the page automation primitives the apply
// workflow drives: locating, waiting for and acting on elements of a single
// stateful browsing context.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

var (
	// ErrNotFound is returned by immediate probes when nothing matches.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout is returned when a wait condition is not met in time.
	ErrTimeout = errors.New("timed out waiting for element")
)

// Condition is what WaitFor waits for.
type Condition int

const (
	ConditionPresent Condition = iota
	ConditionVisible
	ConditionClickable
)

func (c Condition) String() string {
	switch c {
	case ConditionPresent:
		return "present"
	case ConditionVisible:
		return "visible"
	case ConditionClickable:
		return "clickable"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Element references one node matched by Selector. Index is the position
// of the node among all matches at the time it was located. An Element is
// only valid until the document it was found in is re-rendered.
type Element struct {
	Selector string
	Index    int
	node     *cdp.Node
}

func (e *Element) String() string {
	return fmt.Sprintf("%s[%d]", e.Selector, e.Index)
}

// Page is a single navigable browsing context. Implementations are not safe
// for concurrent use.
type Page interface {
	// Locate returns the first element matching selector right now or ErrNotFound.
	Locate(ctx context.Context, selector string) (*Element, error)
	// WaitFor blocks until an element matching selector meets cond or
	// timeout elapses, in which case the error wraps ErrTimeout.
	WaitFor(ctx context.Context, selector string, cond Condition, timeout time.Duration) (*Element, error)
	Click(ctx context.Context, el *Element) error
	TypeText(ctx context.Context, el *Element, text string) error
	ReadText(ctx context.Context, el *Element) (string, error)
	Attribute(ctx context.Context, el *Element, name string) (string, bool, error)
	// SelectOption selects the option at index of a select element.
	SelectOption(ctx context.Context, el *Element, index int) error
	// ListAll returns every element matching selector in document order.
	ListAll(ctx context.Context, selector string) ([]*Element, error)
	// HTML returns the outer html of the first element matching selector
	// with the live form state (values, checked, selected) reflected in
	// the attributes.
	HTML(ctx context.Context, selector string) (string, error)
	Navigate(ctx context.Context, url string) error
	// Quit releases the browsing context. Calling it more than once is a no-op.
	Quit() error
}

// Dumper is implemented by pages that can persist what they currently show
// for later debugging.
type Dumper interface {
	Dump(ctx context.Context, name string) error
}

// Config configures the chrome backed page.
type Config struct {
	Headful             bool   `yaml:"headful" env:"BROWSER_HEADFUL"`
	NoSandbox           bool   `yaml:"no_sandbox" env:"BROWSER_NO_SANDBOX"`
	UserAgent           string `yaml:"user_agent,omitempty" env:"BROWSER_USER_AGENT"`
	UserDataDir         string `yaml:"user_data_dir,omitempty" env:"BROWSER_USER_DATA_DIR"`
	WindowWidth         int    `yaml:"window_width" env-default:"1920"`
	WindowHeight        int    `yaml:"window_height" env-default:"1080"`
	NavigationTimeoutMS int    `yaml:"navigation_timeout_ms" env-default:"30000"`
	DebugDir            string `yaml:"debug_dir" env-default:"debug"`
}

func (c *Config) navigationTimeout() time.Duration {
	if c.NavigationTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMS) * time.Millisecond
}
