package lookup

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foremast/foremast/scm"
)

type mockSCM struct {
	files map[string]string
	refs  []string
}

func (m *mockSCM) Name() string { return "mock" }

func (m *mockSCM) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	m.refs = append(m.refs, ref)
	content, ok := m.files[owner+"/"+repo+"/"+path]
	if !ok {
		return nil, errors.Wrap(scm.ErrNotFound, path)
	}
	return []byte(content), nil
}

func TestLocalGet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "pipeline.json"), []byte(`{
		// comments are fine
		"type": "manual",
	}`), 0644))

	l := &FileLookup{RunwayDir: dir, GitShort: "forrest/core", SCM: &mockSCM{}}
	data, err := l.JSON(context.Background(), "pipeline.json")
	require.NoError(t, err)
	assert.Equal(t, "manual", data["type"])

	_, err = l.Get(context.Background(), "missing.json")
	assert.True(t, IsNotFound(err))
}

func TestRemoteGet(t *testing.T) {
	m := &mockSCM{files: map[string]string{"forrest/core/runway/deploy.json": `{"name":"deploy"}`}}
	l := &FileLookup{GitShort: "forrest/core", SCM: m}

	content, err := l.Get(context.Background(), "deploy.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"deploy"}`, content)
	assert.Equal(t, []string{scm.DefaultRef}, m.refs)

	_, err = l.Get(context.Background(), "other.json")
	assert.True(t, IsNotFound(err))
}

func TestRemoteInvalidRepo(t *testing.T) {
	l := &FileLookup{GitShort: "forrest", SCM: &mockSCM{}}
	_, err := l.Get(context.Background(), "pipeline.json")
	assert.Error(t, err)

	l = &FileLookup{}
	_, err = l.Get(context.Background(), "pipeline.json")
	assert.Error(t, err)
}
