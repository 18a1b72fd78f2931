package scm

import (
	"context"

	"github.com/pkg/errors"
)

const (
	// RepoGithub represents GitHub
	RepoGithub = "github"

	// DefaultRef is the branch read when no ref is configured
	DefaultRef = "master"
)

// ErrNotFound is returned when the requested file does not exist at the ref
var ErrNotFound = errors.New("file not found in repository")

// Client is an interface for reading files from remote SCMs
type Client interface {
	Name() string
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}
