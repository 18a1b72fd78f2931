package tester

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foremast/foremast/spinnaker"
)

type mockGate struct {
	healthErr error
	accounts  []string
}

func (g *mockGate) Health(ctx context.Context) error { return g.healthErr }

func (g *mockGate) GetApplications(ctx context.Context) ([]*spinnaker.Application, error) {
	return []*spinnaker.Application{{Name: "coreforrest"}}, nil
}

func (g *mockGate) GetCredentials(ctx context.Context) ([]string, error) {
	return g.accounts, nil
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), &mockGate{accounts: []string{"prod"}}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1 applications")
	assert.NotContains(t, out.String(), "FAIL")
}

func TestRunReportsFailures(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), &mockGate{healthErr: errors.New("connection refused")}, &out)
	require.Error(t, err)
	assert.Equal(t, "2 of 3 checks failed", err.Error())
	assert.Contains(t, out.String(), "connection refused")
	assert.Contains(t, out.String(), "no accounts configured")
}

func TestAllTests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{"status":"UP"}`) })
	mux.HandleFunc("/applications", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[]`) })
	mux.HandleFunc("/credentials", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `[{"name":"stage"}]`) })
	server := httptest.NewServer(mux)
	defer server.Close()

	file := filepath.Join(t.TempDir(), "foremast.yml")
	require.NoError(t, ioutil.WriteFile(file, []byte("gate_api_url: "+server.URL+"\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, AllTests(context.Background(), file, &out))
	assert.Contains(t, out.String(), "[stage]")
}
