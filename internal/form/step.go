// Package form reads the currently shown step of an application wizard and
// fills in the inputs a step needs before it can be continued.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/agnivade/levenshtein"
	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
)

type StepKind string

const (
	StepForm         StepKind = "form"
	StepReview       StepKind = "review"
	StepConfirmation StepKind = "confirmation"
	StepUnknown      StepKind = "unknown"
)

type FieldKind string

const (
	FieldText         FieldKind = "text"
	FieldSingleChoice FieldKind = "single-choice" // radio button group
	FieldMultiChoice  FieldKind = "multi-choice"  // checkbox group
	FieldDropdown     FieldKind = "dropdown"
)

// Option is one choice of a choice field.
type Option struct {
	Label    string
	Value    string
	Selected bool
	Selector string
	Index    int
}

// Field is one input detected on a step. Selector and Index locate the
// input relative to the step's scope.
type Field struct {
	Kind     FieldKind
	Name     string
	Label    string
	Value    string
	Phone    bool
	Selector string
	Index    int
	Options  []Option
	// SelectedIndex is the index of the selected option or -1.
	SelectedIndex int
}

// WizardStep is a snapshot of one screen of the apply flow. It is rebuilt
// after every transition and never reused.
type WizardStep struct {
	Kind     StepKind
	Heading  string
	Progress string
	Fields   []Field
	// Scope is the selector of the element the step was read from.
	Scope string
}

// Fingerprint identifies the step well enough to tell whether the wizard
// moved on after a continue.
func (s *WizardStep) Fingerprint() string {
	parts := []string{string(s.Kind), s.Heading, s.Progress}
	for _, f := range s.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", f.Kind, f.Name, f.Label))
	}
	return strings.Join(parts, "|")
}

// Element returns the element of field f on the page.
func (s *WizardStep) Element(f Field) *browser.Element {
	return &browser.Element{Selector: s.scoped(f.Selector), Index: f.Index}
}

// OptionElement returns the element of option o on the page.
func (s *WizardStep) OptionElement(o Option) *browser.Element {
	return &browser.Element{Selector: s.scoped(o.Selector), Index: o.Index}
}

func (s *WizardStep) scoped(selector string) string {
	if strings.Contains(selector, ",") && !strings.ContainsAny(selector, `"'`) {
		parts := strings.Split(selector, ",")
		for i, p := range parts {
			parts[i] = s.Scope + " " + strings.TrimSpace(p)
		}
		return strings.Join(parts, ", ")
	}
	return s.Scope + " " + selector
}

// Inspect reads the wizard step currently shown on page. A missing wizard
// container is not an error: the whole body is inspected instead.
func Inspect(ctx context.Context, page browser.Page, sel config.Selectors) (*WizardStep, error) {
	scope := sel.WizardContainer
	html, err := page.HTML(ctx, scope)
	if errors.Is(err, browser.ErrNotFound) {
		scope = "body"
		html, err = page.HTML(ctx, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read wizard step: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return parseStep(doc.Selection, scope, sel), nil
}

// progress reads how far the wizard is. Boards render it as an aria
// progressbar, a native progress element or a nested element carrying
// aria-valuenow.
func progress(root *goquery.Selection) string {
	if v, ok := root.Find("[role=progressbar][aria-valuenow]").First().Attr("aria-valuenow"); ok {
		return v
	}
	if v, ok := root.Find("progress[value]").First().Attr("value"); ok {
		return v
	}
	return root.Find("[aria-valuenow]").First().AttrOr("aria-valuenow", "")
}

func parseStep(root *goquery.Selection, scope string, sel config.Selectors) *WizardStep {
	step := &WizardStep{
		Scope:    scope,
		Heading:  cleanText(root.Find("h1, h2, h3").First().Text()),
		Progress: progress(root),
	}
	step.Fields = append(step.Fields, textFields(root, sel)...)
	step.Fields = append(step.Fields, groupFields(root, "radio", FieldSingleChoice)...)
	step.Fields = append(step.Fields, groupFields(root, "checkbox", FieldMultiChoice)...)
	step.Fields = append(step.Fields, dropdownFields(root)...)

	switch {
	case sel.Confirmation != "" && root.Find(sel.Confirmation).Length() > 0:
		step.Kind = StepConfirmation
	case sel.Submit != "" && root.Find(sel.Submit).Length() > 0:
		step.Kind = StepReview
	case len(step.Fields) > 0:
		step.Kind = StepForm
	default:
		step.Kind = StepUnknown
	}
	return step
}

const textInputSelector = "input[type=text], input[type=tel], input[type=email], input[type=number], input:not([type]), textarea"

func textFields(root *goquery.Selection, sel config.Selectors) []Field {
	fields := []Field{}
	root.Find(textInputSelector).Each(func(i int, s *goquery.Selection) {
		selector, index := locator(root, s, i, textInputSelector)
		name := s.AttrOr("name", s.AttrOr("id", ""))
		label := labelFor(root, s)
		f := Field{
			Kind:          FieldText,
			Name:          name,
			Label:         label,
			Value:         s.AttrOr("value", ""),
			Selector:      selector,
			Index:         index,
			SelectedIndex: -1,
		}
		if s.Is("textarea") {
			f.Value = s.AttrOr("value", s.Text())
		}
		f.Phone = s.AttrOr("type", "") == "tel" ||
			(sel.PhoneField != "" && s.Is(sel.PhoneField)) ||
			looksLikePhone(name+" "+label)
		fields = append(fields, f)
	})
	return fields
}

// groupFields collects radio buttons or checkboxes into one field per name.
func groupFields(root *goquery.Selection, inputType string, kind FieldKind) []Field {
	fields := []Field{}
	byName := map[string]int{}
	root.Find(fmt.Sprintf("input[type=%s]", inputType)).Each(func(i int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		pos, ok := byName[name]
		if !ok {
			label := cleanText(s.Closest("fieldset").Find("legend").First().Text())
			fields = append(fields, Field{
				Kind:          kind,
				Name:          name,
				Label:         label,
				SelectedIndex: -1,
			})
			pos = len(fields) - 1
			byName[name] = pos
		}
		f := &fields[pos]
		o := Option{
			Label: labelFor(root, s),
			Value: s.AttrOr("value", ""),
		}
		if name != "" {
			o.Selector = fmt.Sprintf("input[type=%s][name=%s]", inputType, cssQuote(name))
			o.Index = len(f.Options)
		} else {
			o.Selector = fmt.Sprintf("input[type=%s]", inputType)
			o.Index = i
		}
		if _, checked := s.Attr("checked"); checked {
			o.Selected = true
			if f.SelectedIndex < 0 {
				f.SelectedIndex = len(f.Options)
				f.Value = o.Value
			}
		}
		f.Options = append(f.Options, o)
	})
	return fields
}

func dropdownFields(root *goquery.Selection) []Field {
	fields := []Field{}
	root.Find("select").Each(func(i int, s *goquery.Selection) {
		selector, index := locator(root, s, i, "select")
		f := Field{
			Kind:          FieldDropdown,
			Name:          s.AttrOr("name", s.AttrOr("id", "")),
			Label:         labelFor(root, s),
			Selector:      selector,
			Index:         index,
			SelectedIndex: -1,
		}
		s.Find("option").Each(func(j int, o *goquery.Selection) {
			_, selected := o.Attr("selected")
			f.Options = append(f.Options, Option{
				Label:    cleanText(o.Text()),
				Value:    o.AttrOr("value", cleanText(o.Text())),
				Selected: selected,
			})
			if selected && f.SelectedIndex < 0 {
				f.SelectedIndex = j
				f.Value = f.Options[j].Value
			}
		})
		// a select without an explicitly selected option shows its first one
		if f.SelectedIndex < 0 && len(f.Options) > 0 {
			f.SelectedIndex = 0
			f.Value = f.Options[0].Value
		}
		fields = append(fields, f)
	})
	return fields
}

// locator returns a selector and index that find s again. Ids and names are
// preferred, otherwise the position among all matches of group is used.
func locator(root, s *goquery.Selection, i int, group string) (string, int) {
	tag := goquery.NodeName(s)
	if id := s.AttrOr("id", ""); id != "" {
		return fmt.Sprintf("%s[id=%s]", tag, cssQuote(id)), 0
	}
	if name := s.AttrOr("name", ""); name != "" {
		selector := fmt.Sprintf("%s[name=%s]", tag, cssQuote(name))
		index := 0
		root.Find(selector).EachWithBreak(func(j int, o *goquery.Selection) bool {
			if o.IsSelection(s) {
				index = j
				return false
			}
			return true
		})
		return selector, index
	}
	return group, i
}

func labelFor(root, s *goquery.Selection) string {
	if id := s.AttrOr("id", ""); id != "" {
		if l := root.Find(fmt.Sprintf("label[for=%s]", cssQuote(id))); l.Length() > 0 {
			return cleanText(l.First().Text())
		}
	}
	if l := s.Closest("label"); l.Length() > 0 {
		return cleanText(l.Text())
	}
	if l := s.AttrOr("aria-label", ""); l != "" {
		return cleanText(l)
	}
	return cleanText(s.AttrOr("placeholder", ""))
}

var phoneWords = []string{"phone", "mobile", "telephone", "cellphone", "phonenumber"}

// looksLikePhone reports whether any word of s is, give or take a typo,
// one of the words boards use for phone number inputs.
func looksLikePhone(s string) bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if len(w) < 5 {
			continue
		}
		for _, p := range phoneWords {
			if levenshtein.ComputeDistance(w, p) <= 1 {
				return true
			}
		}
	}
	return false
}

func cssQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
