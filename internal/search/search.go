// Package search opens the job search the run works through.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
	"github.com/jakopako/goapply/internal/log"
)

var (
	// ErrSearchUnavailable means the search results could not be shown. It
	// ends the run.
	ErrSearchUnavailable = errors.New("job search unavailable")
	// ErrNoListings means the search was shown but matched no listings.
	ErrNoListings = errors.New("no listings match the search")
)

// URL returns the search url for sc. Unless any apply flow is allowed only
// listings with the board's own apply wizard are requested.
func URL(sc config.SearchConfig) (string, error) {
	base, err := url.Parse(strings.TrimRight(sc.BaseURL, "/") + "/jobs/search/")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", sc.BaseURL, err)
	}
	q := url.Values{}
	q.Set("keywords", sc.Keywords)
	if sc.Location != "" {
		q.Set("location", sc.Location)
	}
	if !sc.AnyApplyFlow {
		q.Set("f_AL", "true")
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// Open shows the search results on page and waits until the first listing
// is there. A results page that says nothing matched returns ErrNoListings.
func Open(ctx context.Context, page browser.Page, sc config.SearchConfig, sel config.Selectors, wait time.Duration) error {
	u, err := URL(sc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	logger := log.LoggerFromContext(ctx).With(slog.String("keywords", sc.Keywords), slog.String("location", sc.Location))
	logger.Info("searching for jobs")
	logger.Debug(fmt.Sprintf("search url: %s", u))

	if err := page.Navigate(ctx, u); err != nil {
		return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	if _, err := page.WaitFor(ctx, sel.ListingItem, browser.ConditionPresent, wait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if sel.NoResults != "" {
			if _, nerr := page.Locate(ctx, sel.NoResults); nerr == nil {
				return ErrNoListings
			}
		}
		return fmt.Errorf("%w: no listings shown: %v", ErrSearchUnavailable, err)
	}
	return nil
}
