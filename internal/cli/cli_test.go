package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv points the tool at a fake synthesis endpoint and at temporary cache
// and work directories. Text containing "fail me" is rejected.
func setupEnv(t *testing.T) *atomic.Int32 {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "fail me") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("mp3:"))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("AZURE_SPEECH_RESOURCE_KEY", "test-key")
	t.Setenv("AZURE_SPEECH_REGION", "westeurope")
	t.Setenv("AZURE_SPEECH_ENDPOINT", srv.URL)
	t.Setenv("CACHE_BACKEND", "disk")
	t.Setenv("CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("WORK_DIR", filepath.Join(t.TempDir(), "work"))
	t.Setenv("S3_BUCKET", "")
	t.Setenv("LOG_LEVEL", "error")
	return &calls
}

func writePost(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestBuild_WritesAudioPerPost(t *testing.T) {
	calls := setupEnv(t)
	content := t.TempDir()
	out := t.TempDir()

	writePost(t, content, "hello.md", "---\ntitle: Hello\n---\n# Hello\n\nFirst post.")
	writePost(t, content, "guides/setup/index.md", "Setting up.")
	writePost(t, content, "wip.md", "---\ndraft: true\n---\nNot yet.")

	_, _, err := run(t, "", "build", "--content", content, "--out", out)
	require.NoError(t, err)

	for _, slug := range []string{"hello", "guides/setup"} {
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(slug), "index.mp3"))
		require.NoError(t, err, slug)
		assert.Equal(t, "mp3:", string(data))
	}
	_, err = os.Stat(filepath.Join(out, "wip", "index.mp3"))
	assert.True(t, os.IsNotExist(err), "drafts are skipped")
	assert.Equal(t, int32(2), calls.Load())

	// A rebuild is served from the disk cache.
	_, _, err = run(t, "", "build", "--content", content, "--out", out)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBuild_StopsOnSynthesisFailure(t *testing.T) {
	setupEnv(t)
	content := t.TempDir()
	writePost(t, content, "bad.md", "fail me")

	_, _, err := run(t, "", "build", "--content", content, "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.md")
}

func TestBuild_RequiresCredentials(t *testing.T) {
	calls := setupEnv(t)
	t.Setenv("AZURE_SPEECH_RESOURCE_KEY", "")

	_, _, err := run(t, "", "build", "--content", t.TempDir(), "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_SPEECH_RESOURCE_KEY")
	assert.Zero(t, calls.Load())
}

func TestSay_StdinToStdout(t *testing.T) {
	calls := setupEnv(t)

	stdout, _, err := run(t, "# Title\n\nSpoken words.", "say", "-")
	require.NoError(t, err)
	assert.Equal(t, "mp3:", stdout)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSay_FileToFile(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	writePost(t, dir, "note.md", "---\ntitle: Note\n---\nShort note.")
	output := filepath.Join(dir, "out", "note.mp3")

	stdout, _, err := run(t, "", "say", filepath.Join(dir, "note.md"), "--output", output, "--voice", "en-GB-RyanNeural")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "mp3:", string(data))
}

func TestSay_MissingFile(t *testing.T) {
	setupEnv(t)

	_, _, err := run(t, "", "say", filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
}
