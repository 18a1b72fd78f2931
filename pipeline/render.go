package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/flosch/pongo2/v6"
	"github.com/pkg/errors"

	"github.com/foremast/foremast/util"
)

const (
	// JinjaSuffix marks pipeline files rendered as Jinja2 templates
	JinjaSuffix = ".j2"

	// GoTemplateSuffix marks pipeline files rendered with text/template
	GoTemplateSuffix = ".tmpl"
)

func init() {
	// Pipelines are JSON, not HTML.
	pongo2.SetAutoescape(false)
	pongo2.RegisterFilter("tojson", filterToJSON)
}

func filterToJSON(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	data, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:tojson", OrigError: err}
	}
	return pongo2.AsSafeValue(string(data)), nil
}

// Renderer turns template text into pipeline JSON.
type Renderer interface {
	Render(name, text string, data map[string]interface{}, funcs map[string]interface{}) (string, error)
}

// RendererFor returns the renderer for fileName, or nil when the file is
// plain JSON.
func RendererFor(fileName string) Renderer {
	switch {
	case strings.HasSuffix(fileName, JinjaSuffix):
		return jinjaRenderer{}
	case strings.HasSuffix(fileName, GoTemplateSuffix):
		return goTemplateRenderer{}
	}
	return nil
}

type jinjaRenderer struct{}

func (jinjaRenderer) Render(name, text string, data map[string]interface{}, funcs map[string]interface{}) (string, error) {
	tpl, err := pongo2.FromString(text)
	if err != nil {
		return "", errors.Wrapf(err, "parsing template %s", name)
	}

	ctx := pongo2.Context{}
	for k, v := range funcs {
		ctx[k] = v
	}
	for k, v := range data {
		ctx[k] = v
	}

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "rendering template %s", name)
	}
	return out, nil
}

type goTemplateRenderer struct{}

func (goTemplateRenderer) Render(name, text string, data map[string]interface{}, funcs map[string]interface{}) (string, error) {
	tpl, err := template.New(path.Base(name)).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap(funcs)).
		Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "parsing template %s", name)
	}

	var b bytes.Buffer
	if err := tpl.Execute(&b, data); err != nil {
		return "", errors.Wrapf(err, "rendering template %s", name)
	}
	return b.String(), nil
}

// TemplateFunctions are the helpers pipeline templates may call.
type TemplateFunctions struct {
	AppName string
	Gate    Gate
	ctx     context.Context
}

// GetDict returns the helpers keyed by their template name.
func (f *TemplateFunctions) GetDict() map[string]interface{} {
	return map[string]interface{}{
		"get_pipeline_id":         f.getPipelineID,
		"normalize_pipeline_name": util.NormalizePipelineName,
	}
}

func (f *TemplateFunctions) getPipelineID(name string) (string, error) {
	ctx := f.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return f.Gate.GetPipelineID(ctx, f.AppName, name)
}
