package form

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/log"
)

// Resolver fills in a step with a fixed best-effort policy. It does not
// understand the questions; fields it has no rule for are left alone.
type Resolver struct {
	fallbackPhone string
}

func NewResolver(fallbackPhone string) *Resolver {
	return &Resolver{fallbackPhone: strings.TrimSpace(fallbackPhone)}
}

// Resolve applies the fill rules to every field of step and returns how
// many inputs it changed. Failing to fill a single field is logged and
// does not stop the others. Resolving an already filled step changes nothing.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, step *WizardStep) int {
	logger := log.LoggerFromContext(ctx)
	changes := 0
	for _, f := range step.Fields {
		if ctx.Err() != nil {
			return changes
		}
		var err error
		changed := false
		switch f.Kind {
		case FieldText:
			if f.Phone && strings.TrimSpace(f.Value) == "" && r.fallbackPhone != "" {
				err = page.TypeText(ctx, step.Element(f), r.fallbackPhone)
				changed = err == nil
				if changed {
					logger.Info("phone number filled", slog.String("field", f.Name))
				}
			}
		case FieldSingleChoice:
			if f.SelectedIndex < 0 && len(f.Options) > 0 {
				err = page.Click(ctx, step.OptionElement(f.Options[0]))
				changed = err == nil
				if changed {
					logger.Info("selected radio button option", slog.String("field", f.Name), slog.String("option", f.Options[0].Label))
				}
			}
		case FieldDropdown:
			// only move away from the placeholder, never overwrite a choice
			if len(f.Options) > 1 && f.SelectedIndex <= 0 {
				err = page.SelectOption(ctx, step.Element(f), 1)
				changed = err == nil
				if changed {
					logger.Info("selected dropdown option", slog.String("field", f.Name), slog.String("option", f.Options[1].Label))
				}
			}
		}
		if err != nil {
			logger.Warn(fmt.Sprintf("could not fill %s field %q: %v", f.Kind, f.Name, err))
		}
		if changed {
			changes++
		}
	}
	return changes
}
