package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/urfave/cli"

	"github.com/foremast/foremast/runner"
	"github.com/foremast/foremast/tester"
	"github.com/foremast/foremast/util"
)

// Version is reported by --version.
const Version = "0.1.0"

var mainLog = util.NewContextLogger("main")

// handlers are the functions commands dispatch to.
type handlers struct {
	infra           func(ctx context.Context, opts runner.Options) error
	appPipeline     func(ctx context.Context, opts runner.Options) error
	onetimePipeline func(ctx context.Context, opts runner.Options) error
	rebuild         func(ctx context.Context, opts runner.Options, project string, all bool) error
	autoscaling     func(ctx context.Context, opts runner.Options) error
	testAll         func(ctx context.Context, configFile string, w io.Writer) error
}

var defaultHandlers = handlers{
	infra:           runner.PrepareInfrastructure,
	appPipeline:     runner.PrepareAppPipeline,
	onetimePipeline: runner.PrepareOnetimePipeline,
	rebuild:         runner.RebuildPipelines,
	autoscaling:     runner.CreateScalingPolicy,
	testAll:         tester.AllTests,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := newApp(ctx, defaultHandlers)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, h handlers) *cli.App {
	app := cli.NewApp()

	app.Name = "foremast"
	app.Usage = "Foremast, your ship's support."
	app.Description = "Configure Spinnaker applications and pipelines"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "Set logging level to DEBUG",
		},
		cli.BoolFlag{
			Name:  "short-log, s",
			Usage: "Truncated logging format",
		},
		cli.StringFlag{
			Name:   "conf, c",
			Usage:  "Configuration file (default: ~/.foremast/foremast.yml)",
			EnvVar: "FOREMAST_CONFIG",
		},
		cli.StringFlag{
			Name:   "git-repo",
			Usage:  "Repository name of the application",
			EnvVar: "GIT_REPO",
		},
		cli.StringFlag{
			Name:   "project",
			Usage:  "Project (group) the repository belongs to",
			EnvVar: "PROJECT",
		},
		cli.StringFlag{
			Name:   "runway-dir",
			Usage:  "Local directory with pipeline.json and pipeline files, read from git when empty",
			EnvVar: "RUNWAY_DIR",
		},
		cli.StringFlag{
			Name:   "email",
			Usage:  "Owner email of the application",
			EnvVar: "EMAIL",
		},
		cli.StringFlag{
			Name:   "region",
			Usage:  "Restrict to a single region",
			EnvVar: "REGION",
		},
	}
	app.Before = func(c *cli.Context) error {
		util.SetupLogging(c.Bool("debug"), c.Bool("short-log"))
		mainLog.InFunc("Before").Debugf("Arguments: %v", os.Args[1:])
		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:   "infra",
			Usage:  "Create the Spinnaker application",
			Action: run(ctx, h.infra),
		},
		{
			Name:   "pipeline",
			Usage:  "Pipeline subcommands",
			Action: showSubcommandHelp,
			Subcommands: []cli.Command{
				{
					Name:   "app",
					Usage:  "Upload the application pipelines",
					Action: run(ctx, h.appPipeline),
				},
				{
					Name:  "onetime",
					Usage: "Upload one-time pipelines for a single environment",
					Flags: []cli.Flag{
						envFlag(),
					},
					Action: run(ctx, h.onetimePipeline),
				},
			},
		},
		{
			Name:      "rebuild",
			Usage:     "Rebuild pipelines of a project",
			ArgsUsage: "[project]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "all, a",
					Usage: "Rebuild all Pipelines",
				},
			},
			Action: func(c *cli.Context) error {
				project := c.Args().First()
				if project == "" {
					project = os.Getenv("REBUILD_PROJECT")
				}
				return exit(h.rebuild(ctx, options(c), project, c.Bool("all")))
			},
		},
		{
			Name:  "autoscaling",
			Usage: "Create Auto Scaling Group policies",
			Flags: []cli.Flag{
				envFlag(),
			},
			Action: run(ctx, h.autoscaling),
		},
		{
			Name:   "tester",
			Usage:  "Test Spinnaker setup",
			Action: showSubcommandHelp,
			Subcommands: []cli.Command{
				{
					Name:  "all",
					Usage: "Run all Spinnaker checks",
					Action: func(c *cli.Context) error {
						return exit(h.testAll(ctx, c.GlobalString("conf"), c.App.Writer))
					},
				},
			},
		},
	}
	return app
}

func envFlag() cli.Flag {
	return cli.StringFlag{
		Name:   "env, e",
		Usage:  "Environment to work on",
		EnvVar: "ENV",
	}
}

func options(c *cli.Context) runner.Options {
	return runner.Options{
		GitRepo:    c.GlobalString("git-repo"),
		Project:    c.GlobalString("project"),
		RunwayDir:  c.GlobalString("runway-dir"),
		Email:      c.GlobalString("email"),
		Region:     c.GlobalString("region"),
		Env:        c.String("env"),
		ConfigFile: c.GlobalString("conf"),
	}
}

func run(ctx context.Context, handler func(context.Context, runner.Options) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		return exit(handler(ctx, options(c)))
	}
}

// showSubcommandHelp is the action of commands that only group others.
func showSubcommandHelp(c *cli.Context) error {
	return cli.ShowSubcommandHelp(c)
}

func exit(err error) error {
	if err == nil {
		return nil
	}
	mainLog.InFunc("exit").WithError(err).Debugf("%+v", err)
	return cli.NewExitError(err.Error(), 1)
}
