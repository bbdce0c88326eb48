/*
goapply is a command line bot that applies to job listings through a job
board's built in apply wizard.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jakopako/goapply/internal/browser"
	"github.com/jakopako/goapply/internal/config"
	"github.com/jakopako/goapply/internal/log"
	"github.com/jakopako/goapply/internal/output"
	"github.com/jakopako/goapply/internal/runner"
	"github.com/jakopako/goapply/internal/secrets"
	"github.com/jakopako/goapply/internal/session"
	"github.com/jakopako/goapply/internal/types"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var version = "dev"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `short:"d" long:"debug" help:"Set log level to 'debug' and keep a screenshot and the html of every failed listing."`

	Apply       ApplyCmd       `cmd:"" help:"Log in, search for jobs and apply to the listings found."`
	Config      ConfigCmd      `cmd:"" help:"Print the effective configuration with secrets masked."`
	Credentials CredentialsCmd `cmd:"" help:"Manage the job board password stored in the OS keychain."`
}

type ApplyCmd struct {
	Config   string `short:"c" default:"./config.yaml" help:"The location of the configuration file. If it does not exist only environment variables are used." completion:"<file>"`
	Stdout   bool   `short:"o" help:"If set to true the audit log will be written to stdout despite any other existing writer configuration."`
	MaxPages int    `short:"p" help:"Overrides the number of search result pages to process."`
}

func (a *ApplyCmd) Run() error {
	cfg, err := config.NewConfig(a.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if a.Stdout {
		cfg.Writer.Type = output.STDOUT_WRITER_TYPE
	}
	if a.MaxPages > 0 {
		cfg.Search.MaxPages = a.MaxPages
	}

	password, err := secrets.ResolvePassword(cfg.Account)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}

	writer, err := output.NewWriter(&cfg.Writer)
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recordChan := make(chan types.ListingRecord)
	r := &runner.Runner{
		Config: cfg,
		Credentials: session.Credentials{
			Username: cfg.Account.Email,
			Password: password,
		},
		OpenPage: func(ctx context.Context) (browser.Page, error) {
			return browser.NewChromePage(ctx, &cfg.Browser)
		},
		Records: recordChan,
	}

	var summary types.RunSummary
	var g errgroup.Group
	g.Go(func() error {
		slog.Debug("starting writing records")
		writer.Write(recordChan)
		return nil
	})
	g.Go(func() error {
		defer close(recordChan)
		var err error
		summary, err = r.Run(ctx)
		return err
	})
	runErr := g.Wait()

	writer.WriteSummary(summary)
	if err := output.PrintReport(os.Stdout, summary); err != nil {
		slog.Error(fmt.Sprintf("could not print report: %v", err))
	}
	return runErr
}

type ConfigCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file." completion:"<file>"`
}

func (c *ConfigCmd) Run() error {
	cfg, err := config.NewConfig(c.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	masked := cfg.Masked()
	yamlData, err := yaml.Marshal(&masked)
	if err != nil {
		slog.Error(fmt.Sprintf("error while marshalling. %v", err))
		return err
	}
	fmt.Print(string(yamlData))
	return nil
}

type CredentialsCmd struct {
	Set    SetCredentialsCmd    `cmd:"" help:"Store the password for the given email. The password is prompted for without echo, or read from piped stdin."`
	Delete DeleteCredentialsCmd `cmd:"" help:"Remove the stored password for the given email."`
}

type SetCredentialsCmd struct {
	Email string `short:"u" required:"" help:"The email used to log in to the job board."`
}

func (s *SetCredentialsCmd) Run() error {
	pw, err := secrets.PromptPassword(os.Stdin, os.Stderr)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if err := secrets.SetPassword(s.Email, pw); err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	slog.Info(fmt.Sprintf("stored password for %s in the keychain", s.Email))
	return nil
}

type DeleteCredentialsCmd struct {
	Email string `short:"u" required:"" help:"The email used to log in to the job board."`
}

func (d *DeleteCredentialsCmd) Run() error {
	if err := secrets.DeletePassword(d.Email); err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	slog.Info(fmt.Sprintf("deleted password for %s from the keychain", d.Email))
	return nil
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		})

	log.Debug = cli.Debug
	// not very nice that the log package contains global state,
	// and that the following function relies on the log.Debug variable being set
	log.InitializeDefaultLogger()

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
