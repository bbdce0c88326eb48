// Package runner ties a whole run together: it owns the browser session,
// walks the search results and feeds every outcome into the books.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
	"github.com/jakopako/goapply/internal/form"
	"github.com/jakopako/goapply/internal/log"
	"github.com/jakopako/goapply/internal/outcome"
	"github.com/jakopako/goapply/internal/paginator"
	"github.com/jakopako/goapply/internal/search"
	"github.com/jakopako/goapply/internal/session"
	"github.com/jakopako/goapply/internal/types"
	"github.com/jakopako/goapply/internal/utils"
	"github.com/jakopako/goapply/internal/wizard"
	"golang.org/x/time/rate"
)

// ErrAlreadyRunning is returned when another run holds the lock file.
var ErrAlreadyRunning = errors.New("another run is in progress")

// ErrNoSession is returned when a provider reports success without a session.
var ErrNoSession = errors.New("authentication returned no session")

// Runner runs the apply workflow once. Listings are processed strictly one
// after the other on a single page.
type Runner struct {
	Config      *config.Config
	Credentials session.Credentials
	// OpenPage starts the browser. The page is quit exactly once when Run
	// returns, whatever happened.
	OpenPage func(ctx context.Context) (browser.Page, error)
	// NewProvider returns the authentication provider for page. If nil the
	// board's login form is used.
	NewProvider func(page browser.Page) session.Provider
	// Records receives every listing record as soon as it is recorded. It
	// is not closed by Run.
	Records chan<- types.ListingRecord
}

// Run authenticates, opens the search and applies to every listing until
// the results or the page limit are exhausted. It always returns the
// summary of what was processed. The error is non-nil if the run could not
// be set up or was stopped early.
func (r *Runner) Run(ctx context.Context) (types.RunSummary, error) {
	cfg := r.Config
	agg := outcome.NewAggregator(uuid.NewString())
	logger := log.LoggerFromContext(ctx).With(slog.String("run", agg.RunID()))
	ctx = log.ContextWithLogger(ctx, logger)

	if cfg.LockFile != "" {
		lock := flock.New(cfg.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return agg.Summary(), fmt.Errorf("could not lock %s: %w", cfg.LockFile, err)
		}
		if !locked {
			return agg.Summary(), fmt.Errorf("%w: %s is locked", ErrAlreadyRunning, cfg.LockFile)
		}
		defer lock.Unlock()
	}

	page, err := r.OpenPage(ctx)
	if err != nil {
		logger.Error(fmt.Sprintf("could not start browser: %v", err))
		return agg.Summary(), err
	}
	defer func() {
		if err := page.Quit(); err != nil {
			logger.Warn(fmt.Sprintf("error while closing browser: %v", err))
			return
		}
		logger.Info("browser closed")
	}()

	var provider session.Provider
	if r.NewProvider != nil {
		provider = r.NewProvider(page)
	} else {
		provider = session.NewFormLogin(page, cfg.Search.BaseURL, cfg.Selectors, cfg.Wizard.WaitTimeout())
	}
	sess, err := provider.Authenticate(ctx, r.Credentials)
	if err == nil && sess == nil {
		err = ErrNoSession
	}
	if err != nil {
		logger.Error(fmt.Sprintf("login failed: %v", err))
		return agg.Summary(), err
	}
	logger.Info(fmt.Sprintf("logged in as %s", sess.Username),
		slog.Duration("took", sess.EstablishedAt.Sub(agg.Summary().StartedAt).Round(time.Millisecond)))

	if err := search.Open(ctx, page, cfg.Search, cfg.Selectors, cfg.Wizard.WaitTimeout()); err != nil {
		if errors.Is(err, search.ErrNoListings) {
			logger.Info(err.Error())
			return agg.Summary(), nil
		}
		logger.Error(err.Error())
		return agg.Summary(), err
	}

	err = r.process(ctx, page, agg)
	summary := agg.Summary()
	logger.Info("application process completed",
		slog.Int("applied", summary.Applied),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed()))
	if reasons := skipReasons(summary); len(reasons) > 0 {
		logger.Info(fmt.Sprintf("most common skip reason: %s", utils.MostOcc(reasons)))
	}
	return summary, err
}

func (r *Runner) process(ctx context.Context, page browser.Page, agg *outcome.Aggregator) error {
	cfg := r.Config
	logger := log.LoggerFromContext(ctx)
	pages := paginator.New(page, cfg.Selectors, cfg.Search.MaxPages, cfg.Wizard.WaitTimeout())
	machine := wizard.New(page, cfg.Selectors, cfg.Wizard, form.NewResolver(cfg.Account.Phone))
	limiter := newLimiter(cfg.Wizard.ListingsPerMinute)

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("run stopped before the next page")
			return err
		}
		listings, err := pages.NextPage(ctx)
		if errors.Is(err, paginator.ErrEndOfResults) {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("processing page %d of %d", pages.Page(), cfg.Search.MaxPages))

		for i, l := range listings {
			if err := ctx.Err(); err != nil {
				logger.Info("run stopped before the next listing")
				return err
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			logger.Info(fmt.Sprintf("job %d/%d on page %d", i+1, len(listings), l.Page))
			res := machine.Run(ctx, l)
			rec := agg.Record(l.ID, res.Outcome, res.Info)
			if res.Outcome.Kind == types.OutcomeFailed && log.Debug {
				dump(ctx, page, rec)
			}
			if r.Records != nil {
				r.Records <- rec
			}
		}
	}
}

func skipReasons(s types.RunSummary) []string {
	reasons := []string{}
	for _, rec := range s.Log {
		if rec.Outcome.Kind != types.OutcomeApplied {
			reasons = append(reasons, rec.Outcome.Reason)
		}
	}
	return reasons
}

// newLimiter paces the listings. A rate of 0 means no pacing.
func newLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), 1)
}

func dump(ctx context.Context, page browser.Page, rec types.ListingRecord) {
	d, ok := page.(browser.Dumper)
	if !ok {
		return
	}
	name := fmt.Sprintf("%s-%03d-%s", rec.RunID, rec.Seq, rec.ListingID)
	if err := d.Dump(ctx, name); err != nil {
		log.LoggerFromContext(ctx).Warn(fmt.Sprintf("could not dump page: %v", err))
	}
}
