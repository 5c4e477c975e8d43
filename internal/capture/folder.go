package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FolderNamer maps an artifact's browser and the job config to a directory
// below a root. Directories are created on demand.
type FolderNamer struct {
	Root string
}

// RelativePath returns the artifact directory relative to the root:
// {os}/{os_version}/{browser}/{browser_version}/{resolution} for desktop
// targets, {os}/{os_version}/{device}/{orientation} for devices.
func (f FolderNamer) RelativePath(b BrowserProfile, cfg JobConfig) string {
	if b.IsDevice() {
		return filepath.Join(
			pathSegment(b.OS),
			pathSegment(b.OSVersion),
			pathSegment(b.Device),
			pathSegment(string(cfg.Orientation)),
		)
	}
	return filepath.Join(
		pathSegment(b.OS),
		pathSegment(b.OSVersion),
		pathSegment(b.Browser),
		pathSegment(b.BrowserVersion),
		pathSegment(Resolution(b, cfg)),
	)
}

// Ensure creates the artifact directory for b and returns its absolute path.
func (f FolderNamer) Ensure(b BrowserProfile, cfg JobConfig) (string, error) {
	dir := filepath.Join(f.Root, f.RelativePath(b, cfg))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &PersistenceError{Path: dir, Err: fmt.Errorf("create folder: %w", err)}
	}
	return dir, nil
}

// Resolution picks the OS X resolution for Apple targets and the Windows
// resolution otherwise, dropping the vendor "R_" prefix.
func Resolution(b BrowserProfile, cfg JobConfig) string {
	res := cfg.WinResolution
	if strings.Contains(strings.ToLower(b.OS), "os x") {
		res = cfg.OSXResolution
	}
	if len(res) > 2 && strings.EqualFold(res[:2], "r_") {
		res = res[2:]
	}
	return res
}

func pathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(s)
}
