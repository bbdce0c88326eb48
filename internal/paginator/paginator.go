// Package paginator walks the pages of a job search and hands out the
// listings of each page in the order the board shows them.
package paginator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
	"github.com/jakopako/goapply/internal/log"
)

// ErrEndOfResults is returned by NextPage once there are no more pages to
// process. It is the expected way for a search to end.
var ErrEndOfResults = errors.New("end of results")

// idAttributes are tried in order to find a stable id of a listing.
var idAttributes = []string{"data-occludable-job-id", "data-job-id"}

const pollInterval = 250 * time.Millisecond

// Listing is a handle on one job posting of the current page. It is only
// valid until the paginator moves to the next page.
type Listing struct {
	ID      string
	Page    int
	Index   int
	Element *browser.Element
}

type Paginator struct {
	page     browser.Page
	sel      config.Selectors
	maxPages int
	wait     time.Duration
	current  int
	done     bool
	firstID  string
}

func New(page browser.Page, sel config.Selectors, maxPages int, wait time.Duration) *Paginator {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Paginator{
		page:     page,
		sel:      sel,
		maxPages: maxPages,
		wait:     wait,
	}
}

// Page returns the number of the page last returned by NextPage.
func (p *Paginator) Page() int {
	return p.current
}

// NextPage returns the listings of the next page, starting with the page
// currently shown. It returns ErrEndOfResults when the page limit is
// reached or the board offers no usable next page control. The only other
// errors are context errors.
func (p *Paginator) NextPage(ctx context.Context) ([]Listing, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("paginator", "search"))
	if p.done {
		return nil, ErrEndOfResults
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.current > 0 {
		if p.current >= p.maxPages {
			logger.Info(fmt.Sprintf("reached page limit of %d", p.maxPages))
			p.done = true
			return nil, ErrEndOfResults
		}
		if err := p.advance(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Info(fmt.Sprintf("no more pages to process: %v", err))
			p.done = true
			return nil, ErrEndOfResults
		}
	}

	elements, err := p.page.ListAll(ctx, p.sel.ListingItem)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn(fmt.Sprintf("could not list the listings of page %d: %v", p.current+1, err))
		p.done = true
		return nil, ErrEndOfResults
	}
	p.current++

	listings := make([]Listing, 0, len(elements))
	for i, el := range elements {
		listings = append(listings, Listing{
			ID:      p.listingID(ctx, el, i),
			Page:    p.current,
			Index:   i,
			Element: el,
		})
	}
	if len(listings) > 0 {
		p.firstID = listings[0].ID
	}
	logger.Debug(fmt.Sprintf("found %d listings on page %d", len(listings), p.current))
	return listings, nil
}

func (p *Paginator) listingID(ctx context.Context, el *browser.Element, i int) string {
	for _, attr := range idAttributes {
		if v, ok, err := p.page.Attribute(ctx, el, attr); err == nil && ok && v != "" {
			return v
		}
	}
	return fmt.Sprintf("page%d-item%d", p.current, i+1)
}

// advance activates the next page control and waits until the result list
// shows different listings.
func (p *Paginator) advance(ctx context.Context) error {
	next, err := p.page.Locate(ctx, p.sel.NextPage)
	if err != nil {
		return err
	}
	if _, disabled, err := p.page.Attribute(ctx, next, "disabled"); err != nil {
		return err
	} else if disabled {
		return errors.New("next page control is disabled")
	}
	if v, _, err := p.page.Attribute(ctx, next, "aria-disabled"); err == nil && v == "true" {
		return errors.New("next page control is disabled")
	}
	if err := p.page.Click(ctx, next); err != nil {
		return fmt.Errorf("could not click next page control: %w", err)
	}

	deadline := time.Now().Add(p.wait)
	for {
		first, err := p.page.WaitFor(ctx, p.sel.ListingItem, browser.ConditionPresent, p.wait)
		if err != nil {
			return err
		}
		if p.firstID == "" || p.listingIDAt(ctx, first) != p.firstID {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: result list did not change after %v", browser.ErrTimeout, p.wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// listingIDAt is listingID for the listing that is going to be the first
// one of the page being loaded.
func (p *Paginator) listingIDAt(ctx context.Context, el *browser.Element) string {
	for _, attr := range idAttributes {
		if v, ok, err := p.page.Attribute(ctx, el, attr); err == nil && ok && v != "" {
			return v
		}
	}
	if text, err := p.page.ReadText(ctx, el); err == nil {
		return text
	}
	return ""
}
