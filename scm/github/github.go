package github

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/go-github/v29/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/foremast/foremast/scm"
	"github.com/foremast/foremast/util"
)

var githubLog = util.NewContextLogger("scm/github")

// Client is used for making requests to GitHub
type Client struct {
	token   string
	baseURL string
}

// NewClient returns a GitHub client. An empty baseURL targets github.com,
// anything else is treated as a GitHub Enterprise API endpoint.
func NewClient(token, baseURL string) *Client {
	return &Client{token: token, baseURL: baseURL}
}

func (gc *Client) client(ctx context.Context) (*github.Client, error) {
	var hc *http.Client
	if gc.token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: gc.token},
		)
		hc = oauth2.NewClient(ctx, ts)
	}
	if gc.baseURL == "" {
		return github.NewClient(hc), nil
	}
	base := strings.TrimRight(gc.baseURL, "/") + "/"
	return github.NewEnterpriseClient(base, base, hc)
}

// GetFileContent fetches a file from the given commit or branch
func (gc *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	log := githubLog.InFunc("GetFileContent")

	client, err := gc.client(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating github client")
	}

	file, _, resp, err := client.Repositories.GetContents(ctx, owner, repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(scm.ErrNotFound, "%s/%s:%s@%s", owner, repo, path, ref)
		}
		log.WithError(err).Debugf("unable to get %s from %s/%s", path, owner, repo)
		return nil, errors.Wrapf(err, "fetching %s from %s/%s", path, owner, repo)
	}
	if file == nil {
		return nil, errors.Errorf("%s in %s/%s is a directory", path, owner, repo)
	}

	decoded, err := file.GetContent()
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}

	return []byte(decoded), nil
}

// Name returns the client's remote source name
func (gc *Client) Name() string {
	return scm.RepoGithub
}
