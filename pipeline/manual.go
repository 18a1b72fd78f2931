package pipeline

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/foremast/foremast/config"
	"github.com/foremast/foremast/util"
)

// Manual uploads the JSON (or templated JSON) pipeline files listed in
// the application's pipeline_files setting.
type Manual struct {
	*SpinnakerPipeline
}

// NewManual returns the manual uploader for p.
func NewManual(p *SpinnakerPipeline) *Manual {
	return &Manual{SpinnakerPipeline: p}
}

// CreatePipeline uploads every pipeline file in order. The first failure
// stops the run.
func (m *Manual) CreatePipeline(ctx context.Context) error {
	return m.upload(ctx, func(doc Document, defaultName string) string {
		return defaultName
	})
}

func (m *Manual) upload(ctx context.Context, prepare func(doc Document, defaultName string) string) error {
	log := m.logger().InFunc("CreatePipeline")

	pipelines := m.Settings.Pipeline.PipelineFiles
	log.Infof("Uploading manual Pipelines: %v", pipelines)

	for i, fileName := range pipelines {
		jsonString, err := m.GetPipelineFileContents(ctx, fileName)
		if err != nil {
			return err
		}

		if RendererFor(fileName) != nil {
			jsonString, err = m.GetRenderedJSON(ctx, fileName, jsonString, m.GetPipelineVariables(i))
			if err != nil {
				return err
			}
		}

		doc, err := ParseDocument(jsonString)
		if err != nil {
			return errors.Wrapf(err, "pipeline file %s is not valid JSON", fileName)
		}

		// Values foremast owns are only filled in when the file left them out.
		name := util.NormalizePipelineName(strings.TrimPrefix(fileName, config.TemplatesSchemeIdentifier))
		name = prepare(doc, name)
		if err := doc.ApplyDefaults(ctx, m.AppName, name, m.Gate.GetPipelineID); err != nil {
			return err
		}

		if err := m.PostPipeline(ctx, doc); err != nil {
			return err
		}
	}

	return nil
}

// GetPipelineFileContents returns the contents of fileName. Names starting
// with templates:// are shared templates; anything else is read from the
// application's runway directory or repository.
func (m *Manual) GetPipelineFileContents(ctx context.Context, fileName string) (string, error) {
	source, name := m.Files, fileName
	if strings.HasPrefix(fileName, config.TemplatesSchemeIdentifier) {
		source, name = m.Templates, strings.TrimPrefix(fileName, config.TemplatesSchemeIdentifier)
	}
	if source == nil {
		return "", errors.Errorf("no file source configured for %s", fileName)
	}

	content, err := source.Get(ctx, name)
	if err != nil {
		return "", errors.Wrapf(err, "reading pipeline file %s", fileName)
	}
	return content, nil
}

// GetRenderedJSON renders a pipeline template. Templates see the helper
// functions, app_name, env for single environment runs, and variables
// when pipelineVars is not nil.
func (m *Manual) GetRenderedJSON(ctx context.Context, fileName, jsonString string, pipelineVars interface{}) (string, error) {
	renderer := RendererFor(fileName)
	if renderer == nil {
		return jsonString, nil
	}

	funcs := (&TemplateFunctions{AppName: m.AppName, Gate: m.Gate, ctx: ctx}).GetDict()

	data := map[string]interface{}{
		"app_name": m.AppName,
	}
	if m.Env != "" {
		data["env"] = m.Env
	}
	if pipelineVars != nil {
		data["variables"] = pipelineVars
	}

	return renderer.Render(fileName, jsonString, data, funcs)
}

// GetPipelineVariables returns the variables for the pipeline file at
// index, or nil.
func (m *Manual) GetPipelineVariables(index int) interface{} {
	return m.Settings.Pipeline.PipelineVariables(index)
}
