// Package lookup resolves application files either from a local runway
// directory or from the application's source repository.
package lookup

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"

	"github.com/foremast/foremast/scm"
	"github.com/foremast/foremast/util"
)

var lookupLog = util.NewContextLogger("lookup")

// RemoteDir is the repository directory holding foremast files.
const RemoteDir = "runway"

// FileLookup reads files from RunwayDir when set, otherwise from RemoteDir
// of the GitShort ("project/repo") repository at Ref.
type FileLookup struct {
	RunwayDir string
	GitShort  string
	Ref       string
	SCM       scm.Client
}

// Get returns the contents of filename.
func (l *FileLookup) Get(ctx context.Context, filename string) (string, error) {
	if l.RunwayDir != "" {
		return l.local(filename)
	}
	return l.remote(ctx, filename)
}

// JSON returns filename parsed as a JSON object. Comments and trailing
// commas are tolerated.
func (l *FileLookup) JSON(ctx context.Context, filename string) (map[string]interface{}, error) {
	content, err := l.Get(ctx, filename)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &data); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filename)
	}
	return data, nil
}

func (l *FileLookup) local(filename string) (string, error) {
	localPath := filepath.Join(l.RunwayDir, filename)
	lookupLog.InFunc("local").Debugf("reading %s", localPath)

	content, err := ioutil.ReadFile(localPath)
	if os.IsNotExist(err) {
		return "", errors.Wrap(scm.ErrNotFound, localPath)
	}
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", localPath)
	}
	return string(content), nil
}

func (l *FileLookup) remote(ctx context.Context, filename string) (string, error) {
	if l.SCM == nil {
		return "", errors.Errorf("no runway directory or source control configured to read %s", filename)
	}
	parts := strings.SplitN(l.GitShort, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", errors.Errorf("invalid repository %q, expected project/repo", l.GitShort)
	}
	ref := l.Ref
	if ref == "" {
		ref = scm.DefaultRef
	}
	remotePath := path.Join(RemoteDir, filename)
	lookupLog.InFunc("remote").Debugf("reading %s from %s %s@%s", remotePath, l.SCM.Name(), l.GitShort, ref)

	content, err := l.SCM.GetFileContent(ctx, parts[0], parts[1], remotePath, ref)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// IsNotFound reports whether err means the file does not exist.
func IsNotFound(err error) bool {
	return errors.Cause(err) == scm.ErrNotFound
}
