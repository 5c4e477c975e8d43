package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderNamerRelativePath(t *testing.T) {
	t.Parallel()

	cfg := JobConfig{OSXResolution: "R_1920x1080", WinResolution: "1024x768", Orientation: OrientationLandscape}
	cases := []struct {
		name    string
		browser BrowserProfile
		want    string
	}{
		{
			name:    "windows desktop",
			browser: BrowserProfile{OS: "Windows", OSVersion: "10", Browser: "chrome", BrowserVersion: "120.0"},
			want:    filepath.Join("Windows", "10", "chrome", "120.0", "1024x768"),
		},
		{
			name:    "os x strips prefix",
			browser: BrowserProfile{OS: "OS X", OSVersion: "Sonoma", Browser: "safari", BrowserVersion: "17.0"},
			want:    filepath.Join("OS X", "Sonoma", "safari", "17.0", "1920x1080"),
		},
		{
			name:    "device",
			browser: BrowserProfile{OS: "ios", OSVersion: "17", Browser: "Mobile Safari", Device: "iPhone 15"},
			want:    filepath.Join("ios", "17", "iPhone 15", "landscape"),
		},
		{
			name:    "missing segment",
			browser: BrowserProfile{OS: "Windows", OSVersion: "11", Browser: "edge"},
			want:    filepath.Join("Windows", "11", "edge", "_", "1024x768"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, FolderNamer{}.RelativePath(tc.browser, cfg))
		})
	}
}

func TestFolderNamerEnsureIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	namer := FolderNamer{Root: root}
	b := BrowserProfile{OS: "Windows", OSVersion: "10", Browser: "firefox", BrowserVersion: "121.0"}
	cfg := JobConfig{WinResolution: "1280x1024"}

	dir, err := namer.Ensure(b, cfg)
	require.NoError(t, err)
	again, err := namer.Ensure(b, cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, again)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
