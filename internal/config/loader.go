package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	configurationFileName      = "config.yaml"
	userConfigurationDirectory = ".scholarship-advisor"

	// EmbeddedConfigurationReference identifies the embedded fallback source.
	EmbeddedConfigurationReference = "embedded default configuration"

	explicitConfigurationReadErrorFormat = "read configuration %s: %w"
	workingDirectoryErrorFormat          = "determine working directory: %w"
)

//go:embed default_root_configuration.yaml
var embeddedConfigurationBytes []byte

// RootConfigurationSource holds the raw configuration data and its origin.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// Resolver finds the effective configuration. The search order is an explicit
// path, config.yaml in the working directory, the per-user directory, and
// finally the embedded default. The filesystem is injectable for tests.
type Resolver struct {
	FS               afero.Fs
	WorkingDirectory string
	HomeDirectory    string
}

// NewResolver builds a resolver over the real filesystem, the process working
// directory, and HOME.
func NewResolver() (Resolver, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return Resolver{}, fmt.Errorf(workingDirectoryErrorFormat, err)
	}
	return Resolver{
		FS:               afero.NewOsFs(),
		WorkingDirectory: workingDirectory,
		HomeDirectory:    os.Getenv("HOME"),
	}, nil
}

// Resolve returns the first readable source in search order. A missing or
// unreadable file at a search location moves the search along; any other
// failure reading an explicitly requested path is surfaced to the caller.
func (r Resolver) Resolve(explicitPath string) (RootConfigurationSource, error) {
	if explicitPath != "" {
		content, err := afero.ReadFile(r.FS, explicitPath)
		if err == nil {
			return RootConfigurationSource{Reference: explicitPath, Content: content}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
			return RootConfigurationSource{}, fmt.Errorf(explicitConfigurationReadErrorFormat, explicitPath, err)
		}
	}

	for _, directory := range []string{r.WorkingDirectory, r.userDirectory()} {
		if directory == "" {
			continue
		}
		candidate := filepath.Join(directory, configurationFileName)
		if content, err := afero.ReadFile(r.FS, candidate); err == nil {
			return RootConfigurationSource{Reference: candidate, Content: content}, nil
		}
	}

	return RootConfigurationSource{
		Reference: EmbeddedConfigurationReference,
		Content:   embeddedConfigurationBytes,
	}, nil
}

func (r Resolver) userDirectory() string {
	if r.HomeDirectory == "" {
		return ""
	}
	return filepath.Join(r.HomeDirectory, userConfigurationDirectory)
}
