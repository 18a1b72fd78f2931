package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foremast/foremast/notif"
	"github.com/foremast/foremast/settings"
)

type (
	mockGate struct {
		ids    map[string]string
		posted []map[string]interface{}
		err    error
	}

	mockFiles map[string]string

	mockNotifier struct {
		messages []notif.Message
	}
)

func (g *mockGate) GetPipelineID(ctx context.Context, app, name string) (string, error) {
	return g.ids[app+"/"+name], nil
}

func (g *mockGate) PostPipeline(ctx context.Context, pipeline map[string]interface{}) error {
	if g.err != nil {
		return g.err
	}
	// round trip through JSON to see what Gate would receive
	data, _ := json.Marshal(pipeline)
	doc := map[string]interface{}{}
	json.Unmarshal(data, &doc)
	g.posted = append(g.posted, doc)
	return nil
}

func (f mockFiles) Get(ctx context.Context, filename string) (string, error) {
	content, ok := f[filename]
	if !ok {
		return "", errors.Errorf("%s not found", filename)
	}
	return content, nil
}

func (n *mockNotifier) PostMessage(ctx context.Context, msg notif.Message) error {
	n.messages = append(n.messages, msg)
	return nil
}

func newManual(files, templates mockFiles, gate *mockGate, pipeline settings.PipelineSettings) *Manual {
	s := &settings.Settings{Pipeline: pipeline}
	return NewManual(NewSpinnakerPipeline("coreforrest", s, gate, files, templates, nil))
}

func TestCreatePipelineFromJSON(t *testing.T) {
	gate := &mockGate{ids: map[string]string{"coreforrest/deploy.json": "id-1"}}
	files := mockFiles{
		"deploy.json":   `{"stages": [], "limitConcurrent": true}`,
		"rollback.json": `{"name": "Rollback", "application": "other", "stages": []}`,
	}
	m := newManual(files, nil, gate, settings.PipelineSettings{
		PipelineFiles: []string{"deploy.json", "rollback.json"},
	})

	require.NoError(t, m.CreatePipeline(context.Background()))
	require.Len(t, gate.posted, 2)

	assert.Equal(t, "coreforrest", gate.posted[0]["application"])
	assert.Equal(t, "deploy.json", gate.posted[0]["name"])
	assert.Equal(t, "id-1", gate.posted[0]["id"])
	assert.Equal(t, true, gate.posted[0]["limitConcurrent"])

	assert.Equal(t, "other", gate.posted[1]["application"])
	assert.Equal(t, "Rollback", gate.posted[1]["name"])
	require.Contains(t, gate.posted[1], "id")
	assert.Nil(t, gate.posted[1]["id"])
}

func TestCreatePipelineFromJinja(t *testing.T) {
	gate := &mockGate{ids: map[string]string{"coreforrest/deploy": "id-42"}}
	files := mockFiles{
		"deploy.json.j2": `{
			"name": "{{ variables.name }}",
			"parallel": {{ variables.regions|length }},
			"regions": {{ variables.regions|tojson }},
			"triggers": [{"pipeline": "{{ get_pipeline_id("deploy") }}"}],
			"description": "{{ normalize_pipeline_name("a/b") }} for {{ app_name }}"
		}`,
	}
	m := newManual(files, nil, gate, settings.PipelineSettings{
		PipelineFiles: []string{"deploy.json.j2"},
		PipelineFilesVariables: []interface{}{
			map[string]interface{}{"name": "Deploy <prod>", "regions": []interface{}{"us-east-1", "us-west-2"}},
		},
	})

	require.NoError(t, m.CreatePipeline(context.Background()))
	require.Len(t, gate.posted, 1)

	doc := gate.posted[0]
	assert.Equal(t, "Deploy <prod>", doc["name"])
	assert.Equal(t, float64(2), doc["parallel"])
	assert.Equal(t, []interface{}{"us-east-1", "us-west-2"}, doc["regions"])
	assert.Equal(t, "id-42", doc["triggers"].([]interface{})[0].(map[string]interface{})["pipeline"])
	assert.Equal(t, "a_b for coreforrest", doc["description"])
}

func TestJinjaWithoutVariables(t *testing.T) {
	gate := &mockGate{}
	files := mockFiles{
		"deploy.j2": `{"stages": [{% if variables %}"unexpected"{% endif %}]}`,
	}
	m := newManual(files, nil, gate, settings.PipelineSettings{
		PipelineFiles:          []string{"deploy.j2"},
		PipelineFilesVariables: []interface{}{},
	})

	require.NoError(t, m.CreatePipeline(context.Background()))
	assert.Equal(t, []interface{}{}, gate.posted[0]["stages"])
	assert.Equal(t, "deploy.j2", gate.posted[0]["name"])
}

func TestCreatePipelineFromGoTemplate(t *testing.T) {
	gate := &mockGate{}
	files := mockFiles{
		"deploy.json.tmpl": `{"name": "{{ upper .app_name }}", "replicas": {{ .variables.replicas | default 1 }}}`,
	}
	m := newManual(files, nil, gate, settings.PipelineSettings{
		PipelineFiles:          []string{"deploy.json.tmpl"},
		PipelineFilesVariables: []interface{}{map[string]interface{}{"replicas": 3}},
	})

	require.NoError(t, m.CreatePipeline(context.Background()))
	assert.Equal(t, "COREFORREST", gate.posted[0]["name"])
	assert.Equal(t, float64(3), gate.posted[0]["replicas"])
}

func TestSharedTemplate(t *testing.T) {
	gate := &mockGate{}
	templates := mockFiles{"spinnaker.json": `{"stages": []}`}
	m := newManual(mockFiles{}, templates, gate, settings.PipelineSettings{
		PipelineFiles: []string{"templates://spinnaker.json"},
	})

	require.NoError(t, m.CreatePipeline(context.Background()))
	assert.Equal(t, "spinnaker.json", gate.posted[0]["name"])
}

func TestRenderedOutputNotJSON(t *testing.T) {
	gate := &mockGate{}
	files := mockFiles{
		"first.json": `{}`,
		"broken.j2":  `{"name": {{ variables.name }}}`,
		"never.json": `{}`,
	}
	m := newManual(files, nil, gate, settings.PipelineSettings{
		PipelineFiles:          []string{"first.json", "broken.j2", "never.json"},
		PipelineFilesVariables: []interface{}{nil, map[string]interface{}{"name": "unquoted"}},
	})

	err := m.CreatePipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.j2")
	assert.Len(t, gate.posted, 1)
}

func TestMissingPipelineFile(t *testing.T) {
	m := newManual(mockFiles{}, nil, &mockGate{}, settings.PipelineSettings{
		PipelineFiles: []string{"missing.json"},
	})
	assert.Error(t, m.CreatePipeline(context.Background()))
}

func TestPostFailure(t *testing.T) {
	gate := &mockGate{err: errors.New("gate down")}
	m := newManual(mockFiles{"deploy.json": `{}`}, nil, gate, settings.PipelineSettings{
		PipelineFiles: []string{"deploy.json"},
	})
	err := m.CreatePipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate down")
}

func TestGetPipelineVariables(t *testing.T) {
	m := newManual(nil, nil, &mockGate{}, settings.PipelineSettings{
		PipelineFilesVariables: []interface{}{map[string]interface{}{"a": 1}},
	})
	assert.NotNil(t, m.GetPipelineVariables(0))
	assert.Nil(t, m.GetPipelineVariables(1))

	m = newManual(nil, nil, &mockGate{}, settings.PipelineSettings{})
	assert.Nil(t, m.GetPipelineVariables(0))
}

func TestNotification(t *testing.T) {
	gate := &mockGate{}
	notifier := &mockNotifier{}
	s := &settings.Settings{Pipeline: settings.PipelineSettings{
		PipelineFiles: []string{"deploy.json"},
		Notify:        settings.Notifications{Slack: "#deploys"},
	}}
	p := NewSpinnakerPipeline("coreforrest", s, gate, mockFiles{"deploy.json": `{}`}, nil, notifier)

	require.NoError(t, NewManual(p).CreatePipeline(context.Background()))
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, notif.Message{Channel: "#deploys", Application: "coreforrest", Pipeline: "deploy.json"}, notifier.messages[0])
}

func TestOnetime(t *testing.T) {
	gate := &mockGate{ids: map[string]string{"coreforrest/Deploy-onetime-prod": "once-1"}}
	files := mockFiles{
		"deploy.json": `{"name": "Deploy", "id": "regular-id"}`,
		"rollback.j2": `{"stages": [{"account": "{{ env }}"}]}`,
	}
	s := &settings.Settings{Pipeline: settings.PipelineSettings{
		PipelineFiles: []string{"deploy.json", "rollback.j2"},
	}}
	o := NewOnetime(NewSpinnakerPipeline("coreforrest", s, gate, files, nil, nil), "prod")

	require.NoError(t, o.CreatePipeline(context.Background()))
	require.Len(t, gate.posted, 2)

	assert.Equal(t, "Deploy-onetime-prod", gate.posted[0]["name"])
	assert.Equal(t, "once-1", gate.posted[0]["id"])

	assert.Equal(t, "rollback.j2-onetime-prod", gate.posted[1]["name"])
	stage := gate.posted[1]["stages"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "prod", stage["account"])
}

func TestOnetimeDropsRegularID(t *testing.T) {
	gate := &mockGate{ids: map[string]string{"coreforrest/canary.json-onetime-stage": "once-2"}}
	files := mockFiles{
		"deploy.json": `{"id": "regular-id", "stages": []}`,
		"canary.json": `{"id": "regular-canary"}`,
	}
	s := &settings.Settings{Pipeline: settings.PipelineSettings{
		PipelineFiles: []string{"deploy.json", "canary.json"},
	}}
	base := NewSpinnakerPipeline("coreforrest", s, gate, files, nil, nil)
	o := NewOnetime(base, "stage")

	require.NoError(t, o.CreatePipeline(context.Background()))
	require.Len(t, gate.posted, 2)

	assert.Equal(t, "deploy.json-onetime-stage", gate.posted[0]["name"])
	assert.Contains(t, gate.posted[0], "id")
	assert.Nil(t, gate.posted[0]["id"])

	assert.Equal(t, "canary.json-onetime-stage", gate.posted[1]["name"])
	assert.Equal(t, "once-2", gate.posted[1]["id"])

	assert.Empty(t, base.Env)
	assert.Equal(t, "stage", o.Env)
}
