package runner

import (
	"context"

	"github.com/pkg/errors"

	"github.com/foremast/foremast/config"
	"github.com/foremast/foremast/spinnaker"
)

// RebuildPipelines re-uploads the pipelines of every Spinnaker application
// belonging to project, or of every application when all is set. Pipeline
// files are always read from source control. Failures are logged and the
// remaining applications still run.
func RebuildPipelines(ctx context.Context, opts Options, project string, all bool) error {
	log := runnerLog.InFunc("RebuildPipelines")

	if !all && project == "" {
		return errors.New("no project to rebuild, pass one, set REBUILD_PROJECT or use --all")
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	gate, err := spinnaker.NewClient(cfg)
	if err != nil {
		return err
	}

	apps, err := gate.GetApplications(ctx)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}

	total, failed := 0, 0
	for _, app := range apps {
		if app.RepoProjectKey == "" || app.RepoSlug == "" {
			log.Debugf("skipping %s, no repository information", app.Name)
			continue
		}
		if !all && app.RepoProjectKey != project {
			continue
		}

		appOpts := opts
		appOpts.Project = app.RepoProjectKey
		appOpts.GitRepo = app.RepoSlug
		appOpts.RunwayDir = ""

		r, err := NewRunnerWithGate(appOpts, cfg, gate)
		if err == nil {
			err = r.CreatePipeline(ctx, "")
		}
		if errors.Cause(err) == ErrUnsupportedType {
			log.WithError(err).Warnf("skipping %s", app.Name)
			continue
		}

		total++
		if err != nil {
			failed++
			log.WithError(err).Errorf("failed to rebuild pipelines for %s", app.Name)
			continue
		}
		log.Infof("rebuilt pipelines for %s", app.Name)
	}

	if failed > 0 {
		return errors.Errorf("%d of %d applications failed to rebuild", failed, total)
	}
	log.Infof("rebuilt %d applications", total)
	return nil
}
