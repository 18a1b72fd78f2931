package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsIdempotent(t *testing.T) {
	calls := 0
	lookupID := func(ctx context.Context, app, name string) (string, error) {
		calls++
		return "abc", nil
	}

	doc := Document{}
	require.NoError(t, doc.ApplyDefaults(context.Background(), "coreforrest", "deploy", lookupID))
	assert.Equal(t, Document{"application": "coreforrest", "name": "deploy", "id": "abc"}, doc)
	assert.Equal(t, 1, calls)

	require.NoError(t, doc.ApplyDefaults(context.Background(), "otherapp", "other", lookupID))
	assert.Equal(t, Document{"application": "coreforrest", "name": "deploy", "id": "abc"}, doc)
	assert.Equal(t, 1, calls)
}

func TestApplyDefaultsUsesDocumentValues(t *testing.T) {
	var gotApp, gotName string
	lookupID := func(ctx context.Context, app, name string) (string, error) {
		gotApp, gotName = app, name
		return "", nil
	}

	doc := Document{"application": "custom", "name": "Custom Deploy"}
	require.NoError(t, doc.ApplyDefaults(context.Background(), "coreforrest", "deploy", lookupID))
	assert.Equal(t, "custom", gotApp)
	assert.Equal(t, "Custom Deploy", gotName)
	assert.Contains(t, doc, "id")
	assert.Nil(t, doc["id"])
}

func TestApplyDefaultsRejectsNonStringKeys(t *testing.T) {
	calls := 0
	lookupID := func(ctx context.Context, app, name string) (string, error) {
		calls++
		return "", nil
	}

	doc, err := ParseDocument(`{"application": 5, "name": "x"}`)
	require.NoError(t, err)
	err = doc.ApplyDefaults(context.Background(), "coreforrest", "deploy", lookupID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application must be a string")

	doc = Document{"name": []interface{}{"deploy"}}
	err = doc.ApplyDefaults(context.Background(), "coreforrest", "deploy", lookupID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must be a string")

	assert.Equal(t, 0, calls)
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument(`{
		// comment
		"buildNumber": 12345678901234567890,
		"stages": [],
	}`)
	require.NoError(t, err)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"buildNumber": 12345678901234567890, "stages": []}`, string(data))

	_, err = ParseDocument(`[1, 2]`)
	assert.Error(t, err)

	_, err = ParseDocument(`{} {}`)
	assert.Error(t, err)
}
