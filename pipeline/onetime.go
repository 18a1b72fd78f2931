package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// Onetime uploads the manual pipeline files as separate pipelines bound to
// a single environment, named "<name>-onetime-<env>".
type Onetime struct {
	*Manual
}

// NewOnetime returns a one-time uploader for env. p is copied, the caller's
// pipeline keeps its own Env.
func NewOnetime(p *SpinnakerPipeline, env string) *Onetime {
	bound := *p
	bound.Env = env
	return &Onetime{Manual: NewManual(&bound)}
}

// CreatePipeline uploads every pipeline file under its one-time name.
func (o *Onetime) CreatePipeline(ctx context.Context) error {
	return o.upload(ctx, func(doc Document, defaultName string) string {
		if name, ok := doc["name"].(string); ok {
			doc["name"] = onetimeName(name, o.Env)
		}
		// the id belongs to the regular pipeline
		delete(doc, "id")
		return onetimeName(defaultName, o.Env)
	})
}

func onetimeName(name, env string) string {
	suffix := fmt.Sprintf("-onetime-%s", env)
	if strings.HasSuffix(name, suffix) {
		return name
	}
	return name + suffix
}
