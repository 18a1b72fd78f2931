package util

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// GeneratedNames derives Spinnaker and source control names from a
// project/repository pair.
type GeneratedNames struct {
	Project string
	Repo    string
}

// AppName is the Spinnaker application name: repo followed by project,
// lowercased with anything outside [a-z0-9] removed.
func (g GeneratedNames) AppName() string {
	name := strings.ToLower(g.Repo + g.Project)
	return nonAlphanumeric.ReplaceAllString(name, "")
}

// GitShort returns the "project/repo" path used for source control lookups.
func (g GeneratedNames) GitShort() string {
	return fmt.Sprintf("%s/%s", g.Project, g.Repo)
}

// NormalizePipelineName replaces characters Spinnaker does not accept in
// pipeline names with underscores.
func NormalizePipelineName(name string) string {
	normalized := name
	for _, bad := range []string{`\`, "/", "?", "%", "#"} {
		normalized = strings.Replace(normalized, bad, "_", -1)
	}
	return normalized
}
