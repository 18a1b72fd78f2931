// Package pipeline builds Spinnaker pipeline documents and uploads them
// through Gate.
package pipeline

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/foremast/foremast/notif"
	"github.com/foremast/foremast/settings"
	"github.com/foremast/foremast/util"
)

var pipelineLog = util.NewContextLogger("pipeline")

type (
	// Gate is the part of the Spinnaker API pipelines are uploaded through.
	Gate interface {
		GetPipelineID(ctx context.Context, app, name string) (string, error)
		PostPipeline(ctx context.Context, pipeline map[string]interface{}) error
	}

	// FileSource resolves a file name to its contents.
	FileSource interface {
		Get(ctx context.Context, filename string) (string, error)
	}
)

// SpinnakerPipeline holds what every pipeline upload of an application
// needs. Env is empty unless the pipeline targets a single environment.
type SpinnakerPipeline struct {
	AppName   string
	Env       string
	Settings  *settings.Settings
	Gate      Gate
	Files     FileSource
	Templates FileSource
	Notifier  notif.AppNotifier

	log util.ContextLogger
}

// NewSpinnakerPipeline wires an uploader for app. notifier may be nil.
func NewSpinnakerPipeline(app string, s *settings.Settings, gate Gate, files, templates FileSource, notifier notif.AppNotifier) *SpinnakerPipeline {
	return &SpinnakerPipeline{
		AppName:   app,
		Settings:  s,
		Gate:      gate,
		Files:     files,
		Templates: templates,
		Notifier:  notifier,
		log:       pipelineLog.ForApp(app),
	}
}

// PostPipeline uploads a pipeline document. A configured Slack channel is
// notified afterwards; notification failures only get logged.
func (p *SpinnakerPipeline) PostPipeline(ctx context.Context, doc Document) error {
	log := p.logger().InFunc("PostPipeline")

	name, _ := doc["name"].(string)
	if name == "" {
		return errors.New("pipeline document has no name")
	}

	if pretty, err := json.MarshalIndent(doc, "", "  "); err == nil {
		log.Debugf("Pipeline JSON:\n%s", pretty)
	}

	if err := p.Gate.PostPipeline(ctx, doc); err != nil {
		log.WithError(err).Errorf("failed to upload pipeline %s", name)
		return errors.Wrapf(err, "uploading pipeline %s", name)
	}
	log.Infof("Successfully uploaded pipeline %s", name)

	p.notify(ctx, name)
	return nil
}

func (p *SpinnakerPipeline) notify(ctx context.Context, name string) {
	if p.Notifier == nil || p.Settings == nil || p.Settings.Pipeline.Notify.Slack == "" {
		return
	}
	err := p.Notifier.PostMessage(ctx, notif.Message{
		Channel:     p.Settings.Pipeline.Notify.Slack,
		Application: p.AppName,
		Pipeline:    name,
		Env:         p.Env,
	})
	if err != nil {
		p.logger().InFunc("notify").WithError(err).Warn("unable to send slack notification")
	}
}

func (p *SpinnakerPipeline) logger() util.ContextLogger {
	if p.log.Entry == nil {
		p.log = pipelineLog.ForApp(p.AppName)
	}
	return p.log
}
