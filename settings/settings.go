// Package settings loads the per-application foremast settings:
// pipeline.json and one application-master-<env>.json per environment.
// YAML variants (.yml) are accepted when the JSON file is absent.
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"

	"github.com/foremast/foremast/lookup"
	"github.com/foremast/foremast/util"
)

const (
	// PipelineFile holds the pipeline settings of an application
	PipelineFile = "pipeline"

	// TypeManual marks applications whose pipelines come from pipeline_files
	TypeManual = "manual"

	defaultType = "ec2"
)

var settingsLog = util.NewContextLogger("settings")

type (
	// Settings is the merged view of an application's foremast files.
	Settings struct {
		Pipeline PipelineSettings
		Envs     map[string]*EnvSettings
	}

	PipelineSettings struct {
		Type       string        `mapstructure:"type"`
		OwnerEmail string        `mapstructure:"owner_email"`
		Env        []string      `mapstructure:"env"`
		Notify     Notifications `mapstructure:"notifications"`

		// PipelineFiles are uploaded in order by the manual pipeline type.
		PipelineFiles []string `mapstructure:"pipeline_files"`
		// PipelineFilesVariables is kept untyped: only a list is honoured,
		// with entry i applying to PipelineFiles[i].
		PipelineFilesVariables interface{} `mapstructure:"pipeline_files_variables"`
	}

	Notifications struct {
		Slack string `mapstructure:"slack"`
		Email string `mapstructure:"email"`
	}

	EnvSettings struct {
		Regions []string `mapstructure:"regions"`
		Asg     Asg      `mapstructure:"asg"`
	}

	Asg struct {
		ScalingPolicy *ScalingPolicy `mapstructure:"scaling_policy"`
	}

	ScalingPolicy struct {
		Metric                    string  `mapstructure:"metric"`
		Threshold                 float64 `mapstructure:"threshold"`
		Statistic                 string  `mapstructure:"statistic"`
		PeriodMinutes             int     `mapstructure:"period_minutes"`
		InstanceWarmup            int     `mapstructure:"instance_warmup"`
		ScaleDown                 bool    `mapstructure:"scale_down"`
		IncreaseScalingAdjustment int     `mapstructure:"increase_scaling_adjustment"`
		DecreaseScalingAdjustment int     `mapstructure:"decrease_scaling_adjustment"`
	}
)

// EnvFile is the settings file name for env.
func EnvFile(env string) string {
	return fmt.Sprintf("application-master-%s", env)
}

// Load reads the application settings through l. defaultEnvs is used when
// pipeline.json does not list environments.
func Load(ctx context.Context, l *lookup.FileLookup, defaultEnvs []string) (*Settings, error) {
	log := settingsLog.InFunc("Load")

	s := &Settings{
		Pipeline: PipelineSettings{Type: defaultType},
		Envs:     map[string]*EnvSettings{},
	}

	raw, err := readDocument(ctx, l, PipelineFile)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		log.Infof("no %s file found, using defaults", PipelineFile)
	} else if err := decode(raw, &s.Pipeline); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", PipelineFile)
	}

	if len(s.Pipeline.Env) == 0 {
		s.Pipeline.Env = defaultEnvs
	}

	for _, env := range s.Pipeline.Env {
		envSettings := &EnvSettings{}
		raw, err := readDocument(ctx, l, EnvFile(env))
		if err != nil {
			return nil, err
		}
		if raw != nil {
			if err := decode(raw, envSettings); err != nil {
				return nil, errors.Wrapf(err, "decoding %s", EnvFile(env))
			}
		}
		s.Envs[env] = envSettings
	}

	log.Debugf("loaded settings: %+v", s.Pipeline)
	return s, nil
}

// PipelineVariables returns the variables configured for the pipeline file
// at index, or nil when pipeline_files_variables is absent, not a list, or
// too short.
func (p *PipelineSettings) PipelineVariables(index int) interface{} {
	list, ok := p.PipelineFilesVariables.([]interface{})
	if !ok || index < 0 || len(list) <= index {
		return nil
	}
	return list[index]
}

// HasEnv reports whether env is one of the application's environments.
func (p *PipelineSettings) HasEnv(env string) bool {
	for _, e := range p.Env {
		if e == env {
			return true
		}
	}
	return false
}

// readDocument returns name.json, falling back to name.yml. Both missing
// yields a nil map and no error.
func readDocument(ctx context.Context, l *lookup.FileLookup, name string) (map[string]interface{}, error) {
	content, err := l.Get(ctx, name+".json")
	if err == nil {
		doc := map[string]interface{}{}
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &doc); err != nil {
			return nil, errors.Wrapf(err, "parsing %s.json", name)
		}
		return doc, nil
	}
	if !lookup.IsNotFound(err) {
		return nil, err
	}

	content, err = l.Get(ctx, name+".yml")
	if lookup.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := yaml.YAMLToJSON([]byte(content))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s.yml", name)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s.yml", name)
	}
	return doc, nil
}

func decode(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
