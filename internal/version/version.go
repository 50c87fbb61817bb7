package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-version"
)

// Version is overridden at build time with -ldflags "-X ...version.Version=v1.2.3".
var Version = "v0.1.0"

// Current parses the build version.
func Current() (*version.Version, error) {
	return version.NewVersion(Version)
}

// Check verifies the build version satisfies constraint. An empty constraint
// always passes.
func Check(constraint string) error {
	if constraint == "" {
		return nil
	}

	c, err := version.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	current, err := Current()
	if err != nil {
		return fmt.Errorf("invalid build version %q: %w", Version, err)
	}

	if !c.Check(current) {
		return fmt.Errorf("version %s does not satisfy %q", current, constraint)
	}
	return nil
}

// Info is the build information reported by the health endpoint.
type Info struct {
	Version    string `json:"version"`
	Constraint string `json:"min_version,omitempty"`
	Compatible bool   `json:"compatible"`
}

func Describe(constraint string) Info {
	return Info{
		Version:    Version,
		Constraint: constraint,
		Compatible: Check(constraint) == nil,
	}
}

type release struct {
	TagName string `json:"tag_name"`
}

// Latest fetches a GitHub style release document from url and reports the
// newest tag and whether the running build is older.
func Latest(ctx context.Context, client *http.Client, url string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("release check returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", false, err
	}

	latest, err := version.NewVersion(rel.TagName)
	if err != nil {
		return "", false, fmt.Errorf("invalid release tag %q: %w", rel.TagName, err)
	}
	current, err := Current()
	if err != nil {
		return "", false, err
	}

	return rel.TagName, current.LessThan(latest), nil
}
