// Package runner holds the handlers behind each foremast command. Every
// handler builds a Runner for one application from Options and the tool
// configuration, then performs a single action against Spinnaker.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/foremast/foremast/config"
	"github.com/foremast/foremast/lookup"
	"github.com/foremast/foremast/notif"
	"github.com/foremast/foremast/pipeline"
	"github.com/foremast/foremast/scm"
	"github.com/foremast/foremast/scm/github"
	"github.com/foremast/foremast/settings"
	"github.com/foremast/foremast/spinnaker"
	"github.com/foremast/foremast/util"
)

var runnerLog = util.NewContextLogger("runner")

// ErrUnsupportedType is returned for pipeline types foremast cannot build.
var ErrUnsupportedType = errors.New("unsupported pipeline type")

// Options are the per-invocation inputs, usually taken from flags or the
// environment.
type Options struct {
	GitRepo    string
	Project    string
	RunwayDir  string
	Email      string
	Env        string
	Region     string
	ConfigFile string
}

// Runner performs foremast actions for a single application.
type Runner struct {
	Options

	Names   util.GeneratedNames
	AppName string

	Config    *config.Config
	Gate      *spinnaker.Client
	SCM       scm.Client
	Files     *lookup.FileLookup
	Templates *lookup.FileLookup
	Notifier  notif.AppNotifier

	settings *settings.Settings
	log      util.ContextLogger
}

// NewRunner validates opts and wires the clients for the application they
// name.
func NewRunner(opts Options, cfg *config.Config) (*Runner, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	gate, err := spinnaker.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRunnerWithGate(opts, cfg, gate)
}

// NewRunnerWithGate is NewRunner reusing an existing Gate client.
func NewRunnerWithGate(opts Options, cfg *config.Config, gate *spinnaker.Client) (*Runner, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	names := util.GeneratedNames{Project: opts.Project, Repo: opts.GitRepo}
	scmClient := github.NewClient(cfg.GitToken, cfg.GitURL)

	r := &Runner{
		Options: opts,
		Names:   names,
		AppName: names.AppName(),
		Config:  cfg,
		Gate:    gate,
		SCM:     scmClient,
		Files: &lookup.FileLookup{
			RunwayDir: opts.RunwayDir,
			GitShort:  names.GitShort(),
			Ref:       cfg.GitRef,
			SCM:       scmClient,
		},
		Templates: &lookup.FileLookup{RunwayDir: cfg.PipelineTemplatesPath()},
		log:       runnerLog.ForApp(names.AppName()),
	}
	if cfg.SlackWebhook != "" {
		r.Notifier = &notif.SlackNotifier{URL: cfg.SlackWebhook}
	}
	return r, nil
}

func validateOptions(opts Options) error {
	missing := []string{}
	if opts.GitRepo == "" {
		missing = append(missing, "git repo")
	}
	if opts.Project == "" {
		missing = append(missing, "project")
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing arguments: [%s]", strings.Join(missing, ", "))
	}
	return nil
}

func newRunner(opts Options) (*Runner, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	return NewRunner(opts, cfg)
}

// Settings loads the application settings once.
func (r *Runner) Settings(ctx context.Context) (*settings.Settings, error) {
	if r.settings != nil {
		return r.settings, nil
	}
	s, err := settings.Load(ctx, r.Files, r.Config.Envs)
	if err != nil {
		return nil, errors.Wrapf(err, "loading settings for %s", r.AppName)
	}
	r.settings = s
	return s, nil
}

// CreateApp creates or updates the Spinnaker application.
func (r *Runner) CreateApp(ctx context.Context) error {
	log := r.log.InFunc("CreateApp")

	s, err := r.Settings(ctx)
	if err != nil {
		return err
	}

	email := r.Email
	if email == "" {
		email = s.Pipeline.OwnerEmail
	}
	if email == "" {
		email = fmt.Sprintf("%s@%s", r.AppName, r.Config.EmailDomain)
	}

	task := &spinnaker.Task{
		Application: r.AppName,
		Description: "Create Application: " + r.AppName,
		Job: []map[string]interface{}{{
			"type": "createApplication",
			"user": "foremast",
			"application": map[string]interface{}{
				"name":           r.AppName,
				"email":          email,
				"description":    fmt.Sprintf("%s application", r.Names.GitShort()),
				"repoProjectKey": r.Project,
				"repoSlug":       r.GitRepo,
				"repoType":       r.SCM.Name(),
				"cloudProviders": "aws",
			},
		}},
	}

	id, err := r.Gate.PostTask(ctx, task)
	if err != nil {
		return errors.Wrapf(err, "creating application %s", r.AppName)
	}
	if err := r.Gate.WaitForTask(ctx, id); err != nil {
		return errors.Wrapf(err, "creating application %s", r.AppName)
	}
	log.Infof("Application %s is ready", r.AppName)
	return nil
}

// CreatePipeline uploads the application's pipelines. A non-empty env
// uploads them as one-time pipelines for that environment.
func (r *Runner) CreatePipeline(ctx context.Context, env string) error {
	s, err := r.Settings(ctx)
	if err != nil {
		return err
	}

	if s.Pipeline.Type != settings.TypeManual {
		return errors.Wrapf(ErrUnsupportedType, "%s uses pipeline type %q, only %q can be uploaded",
			r.AppName, s.Pipeline.Type, settings.TypeManual)
	}

	base := pipeline.NewSpinnakerPipeline(r.AppName, s, r.Gate, r.Files, r.Templates, r.Notifier)
	if env == "" {
		return pipeline.NewManual(base).CreatePipeline(ctx)
	}

	if !s.Pipeline.HasEnv(env) {
		return errors.Errorf("%s has no environment %q, expected one of %v", r.AppName, env, s.Pipeline.Env)
	}
	return pipeline.NewOnetime(base, env).CreatePipeline(ctx)
}

// PrepareInfrastructure creates the Spinnaker application.
func PrepareInfrastructure(ctx context.Context, opts Options) error {
	r, err := newRunner(opts)
	if err != nil {
		return err
	}
	return r.CreateApp(ctx)
}

// PrepareAppPipeline uploads the application's pipelines.
func PrepareAppPipeline(ctx context.Context, opts Options) error {
	r, err := newRunner(opts)
	if err != nil {
		return err
	}
	return r.CreatePipeline(ctx, "")
}

// PrepareOnetimePipeline uploads one-time pipelines for opts.Env.
func PrepareOnetimePipeline(ctx context.Context, opts Options) error {
	if opts.Env == "" {
		return errors.New("an environment is required for one-time pipelines")
	}
	r, err := newRunner(opts)
	if err != nil {
		return err
	}
	return r.CreatePipeline(ctx, opts.Env)
}
