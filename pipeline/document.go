package pipeline

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
)

// Document is a pipeline definition as understood by Spinnaker.
type Document map[string]interface{}

// IDFunc finds the id of an existing pipeline.
type IDFunc func(ctx context.Context, app, name string) (string, error)

// ParseDocument decodes a JSON object. Comments and trailing commas are
// stripped first and numbers keep their original text.
func ParseDocument(data string) (Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(data))))
	decoder.UseNumber()

	doc := Document{}
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, errors.New("unexpected data after pipeline object")
	}
	return doc, nil
}

// ApplyDefaults sets application, name and id when they are missing. id
// is looked up for the resulting application and name; a pipeline Spinnaker
// does not know yet gets a null id. Keys already present are never touched.
func (d Document) ApplyDefaults(ctx context.Context, app, name string, lookupID IDFunc) error {
	if _, ok := d["application"]; !ok {
		d["application"] = app
	}
	if _, ok := d["name"]; !ok {
		d["name"] = name
	}
	if _, ok := d["id"]; ok {
		return nil
	}

	docApp, ok := d["application"].(string)
	if !ok {
		return errors.Errorf("pipeline application must be a string, got %v", d["application"])
	}
	docName, ok := d["name"].(string)
	if !ok {
		return errors.Errorf("pipeline name must be a string, got %v", d["name"])
	}
	id, err := lookupID(ctx, docApp, docName)
	if err != nil {
		return errors.Wrapf(err, "looking up id of pipeline %s", docName)
	}
	if id == "" {
		d["id"] = nil
	} else {
		d["id"] = id
	}
	return nil
}
