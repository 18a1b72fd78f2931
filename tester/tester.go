// Package tester checks that foremast can reach and use Spinnaker.
package tester

import (
	"context"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/pkg/errors"

	"github.com/foremast/foremast/config"
	"github.com/foremast/foremast/spinnaker"
	"github.com/foremast/foremast/util"
)

var testerLog = util.NewContextLogger("tester")

// Gate is what the checks call on Spinnaker.
type Gate interface {
	Health(ctx context.Context) error
	GetApplications(ctx context.Context) ([]*spinnaker.Application, error)
	GetCredentials(ctx context.Context) ([]string, error)
}

type check struct {
	name string
	run  func(ctx context.Context, gate Gate) (string, error)
}

var checks = []check{
	{"gate health", func(ctx context.Context, gate Gate) (string, error) {
		return "UP", gate.Health(ctx)
	}},
	{"applications", func(ctx context.Context, gate Gate) (string, error) {
		apps, err := gate.GetApplications(ctx)
		return fmt.Sprintf("%d applications", len(apps)), err
	}},
	{"credentials", func(ctx context.Context, gate Gate) (string, error) {
		accounts, err := gate.GetCredentials(ctx)
		if err == nil && len(accounts) == 0 {
			err = errors.New("no accounts configured")
		}
		return fmt.Sprintf("%v", accounts), err
	}},
}

// AllTests loads the configuration and runs every check against Gate.
func AllTests(ctx context.Context, configFile string, w io.Writer) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	gate, err := spinnaker.NewClient(cfg)
	if err != nil {
		return err
	}
	return Run(ctx, gate, w)
}

// Run executes the checks and prints a result table to w. Every check runs
// even after a failure.
func Run(ctx context.Context, gate Gate, w io.Writer) error {
	log := testerLog.InFunc("Run")

	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("CHECK", "STATUS", "DETAIL")

	failed := 0
	for _, c := range checks {
		detail, err := c.run(ctx, gate)
		status := "OK"
		if err != nil {
			failed++
			status = "FAIL"
			detail = err.Error()
			log.WithError(err).Debugf("check %s failed", c.name)
		}
		table.AddRow(c.name, status, detail)
	}
	fmt.Fprintln(w, table)

	if failed > 0 {
		return errors.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}
