// Package config loads the run configuration from a yaml file and/or
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/output"
)

// SearchConfig holds what to search for. The env names are the ones the
// bot has always been configured with.
type SearchConfig struct {
	Keywords     string `yaml:"keywords" env:"JOB_SEARCH_TERMS" env-default:"Python Developer"`
	Location     string `yaml:"location" env:"JOB_LOCATION" env-default:"Remote"`
	MaxPages     int    `yaml:"max_pages" env:"NUM_PAGES" env-default:"1"`
	BaseURL      string `yaml:"base_url" env:"JOB_BOARD_URL" env-default:"https://www.linkedin.com"`
	AnyApplyFlow bool   `yaml:"any_apply_flow" env:"JOB_ANY_APPLY_FLOW"` // if false only Easy Apply listings are searched
}

// AccountConfig holds the login and the fallback values used to fill in
// application forms. The password may also come from the OS keychain.
type AccountConfig struct {
	Email    string `yaml:"email" env:"LINKEDIN_EMAIL"`
	Password string `yaml:"password,omitempty" env:"LINKEDIN_PASSWORD"`
	Phone    string `yaml:"phone,omitempty" env:"LINKEDIN_PHONE"`
}

// WizardConfig bounds how long and how far a single application is driven.
type WizardConfig struct {
	WaitTimeoutMS     int     `yaml:"wait_timeout_ms" env:"WIZARD_WAIT_TIMEOUT_MS" env-default:"10000"`
	ConfirmTimeoutMS  int     `yaml:"confirm_timeout_ms" env:"WIZARD_CONFIRM_TIMEOUT_MS" env-default:"10000"`
	MaxSteps          int     `yaml:"max_steps" env:"WIZARD_MAX_STEPS" env-default:"20"`
	ListingsPerMinute float64 `yaml:"listings_per_minute" env:"LISTINGS_PER_MINUTE" env-default:"20"`
}

func (w WizardConfig) WaitTimeout() time.Duration {
	return time.Duration(w.WaitTimeoutMS) * time.Millisecond
}

func (w WizardConfig) ConfirmTimeout() time.Duration {
	return time.Duration(w.ConfirmTimeoutMS) * time.Millisecond
}

// Selectors are the css selectors of everything the workflow looks for on
// the job board. The defaults match the board's current markup.
type Selectors struct {
	LoginUsername  string `yaml:"login_username" env-default:"#username"`
	LoginPassword  string `yaml:"login_password" env-default:"#password"`
	LoginSubmit    string `yaml:"login_submit" env-default:"button[type='submit']"`
	LoggedIn       string `yaml:"logged_in" env-default:".global-nav__me"`
	LoginChallenge string `yaml:"login_challenge" env-default:"#input__email_verification_pin, input[name='pin'], #captcha-internal, form#two-step-challenge"`
	LoginError     string `yaml:"login_error" env-default:"#error-for-password, #error-for-username"`

	ListingItem string `yaml:"listing_item" env-default:".jobs-search-results__list-item"`
	NoResults   string `yaml:"no_results" env-default:".jobs-search-no-results-banner"`
	NextPage    string `yaml:"next_page" env-default:"button[aria-label='Next']"`

	JobTitle    string `yaml:"job_title" env-default:".jobs-unified-top-card__job-title"`
	CompanyName string `yaml:"company_name" env-default:".jobs-unified-top-card__company-name"`
	ApplyButton string `yaml:"apply_button" env-default:".jobs-apply-button"`

	WizardContainer string `yaml:"wizard_container" env-default:".jobs-easy-apply-modal"`
	Continue        string `yaml:"continue" env-default:"button[aria-label='Continue to next step'], button[aria-label='Review your application']"`
	Submit          string `yaml:"submit" env-default:"button[aria-label='Submit application']"`
	Dismiss         string `yaml:"dismiss" env-default:"button[aria-label='Dismiss']"`
	DiscardConfirm  string `yaml:"discard_confirm" env-default:"button[data-control-name='discard_application_confirm_btn']"`
	Confirmation    string `yaml:"confirmation" env-default:"[data-test-modal-id='post-apply-modal']"`
	PhoneField      string `yaml:"phone_field" env-default:"input[name='phoneNumber']"`
}

// Config defines the overall structure of the configuration.
// Values will be taken from a config yml file or environment variables
// or both.
type Config struct {
	Search    SearchConfig        `yaml:"search"`
	Account   AccountConfig       `yaml:"account"`
	Wizard    WizardConfig        `yaml:"wizard"`
	Browser   browser.Config      `yaml:"browser"`
	Selectors Selectors           `yaml:"selectors"`
	Writer    output.WriterConfig `yaml:"writer"`
	LockFile  string              `yaml:"lock_file" env:"GOAPPLY_LOCK_FILE" env-default:"goapply.lock"`
}

// NewConfig reads the configuration from configPath. If there is no file at
// configPath only the environment and the defaults are used.
func NewConfig(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, err
		}
	} else if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	if config.Writer.Type == "" {
		config.Writer.Type = output.STDOUT_WRITER_TYPE
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the options that have no sensible fallback.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Search.Keywords) == "" {
		errs = append(errs, errors.New("search.keywords cannot be empty"))
	}
	if c.Search.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("search.max_pages must be a positive integer, got %d", c.Search.MaxPages))
	}
	if c.Wizard.WaitTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("wizard.wait_timeout_ms must be positive, got %d", c.Wizard.WaitTimeoutMS))
	}
	if c.Wizard.ConfirmTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("wizard.confirm_timeout_ms cannot be negative, got %d", c.Wizard.ConfirmTimeoutMS))
	}
	if c.Wizard.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("wizard.max_steps must be a positive integer, got %d", c.Wizard.MaxSteps))
	}
	if c.Wizard.ListingsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("wizard.listings_per_minute cannot be negative, got %v", c.Wizard.ListingsPerMinute))
	}
	return errors.Join(errs...)
}

// Masked returns a copy of the configuration with secrets blanked out.
func (c Config) Masked() Config {
	if c.Account.Password != "" {
		c.Account.Password = "****"
	}
	if c.Writer.Password != "" {
		c.Writer.Password = "****"
	}
	if c.Writer.DSN != "" {
		c.Writer.DSN = "****"
	}
	return c
}
