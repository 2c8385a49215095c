package post

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Post
	}{
		{
			name:  "no front matter",
			input: "# Hello\n\nWorld",
			want:  Post{Body: "# Hello\n\nWorld"},
		},
		{
			name:  "front matter",
			input: "---\ntitle: Hello\nslug: greetings/hello\n---\n# Hello\n",
			want:  Post{FrontMatter: FrontMatter{Title: "Hello", Slug: "greetings/hello"}, Body: "# Hello\n"},
		},
		{
			name:  "draft",
			input: "---\ntitle: WIP\ndraft: true\n---\nbody",
			want:  Post{FrontMatter: FrontMatter{Title: "WIP", Draft: true}, Body: "body"},
		},
		{
			name:  "empty front matter",
			input: "---\n---\nbody",
			want:  Post{Body: "body"},
		},
		{
			name:  "front matter only",
			input: "---\ntitle: Only\n---",
			want:  Post{FrontMatter: FrontMatter{Title: "Only"}},
		},
		{
			name:  "crlf and bom",
			input: "\ufeff---\r\ntitle: Win\r\n---\r\nbody\r\n",
			want:  Post{FrontMatter: FrontMatter{Title: "Win"}, Body: "body\n"},
		},
		{
			name:  "unknown keys ignored",
			input: "---\ntitle: T\ntags: [a, b]\npubDate: 2024-01-01\n---\nx",
			want:  Post{FrontMatter: FrontMatter{Title: "T"}, Body: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: never closed\n"))
	assert.ErrorIs(t, err, ErrUnterminatedFrontMatter)

	_, err = Parse([]byte("---\ntitle: [unclosed\n---\nbody"))
	assert.Error(t, err)
}

func TestLoad_Slug(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		rel     string
		content string
		want    string
	}{
		{"hello.md", "hi", "hello"},
		{"2024/trip.mdx", "hi", "2024/trip"},
		{"series/part-one/index.md", "hi", "series/part-one"},
		{"index.md", "hi", ""},
		{"custom.md", "---\nslug: /explicit/slug/\n---\nhi", "explicit/slug"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			path := filepath.Join(root, tt.rel)
			writeFile(t, path, tt.content)

			p, err := Load(root, path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Slug)
			assert.Equal(t, path, p.Path)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir(), "/does/not/exist.md")
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.md"), "---\ntitle: B\n---\nBee")
	writeFile(t, filepath.Join(root, "a", "index.md"), "---\ntitle: A\n---\nAy")
	writeFile(t, filepath.Join(root, "draft.md"), "---\ndraft: true\n---\nhidden")
	writeFile(t, filepath.Join(root, "notes.txt"), "not a post")
	writeFile(t, filepath.Join(root, "c.MDX"), "See")

	posts, err := Collect(root)
	require.NoError(t, err)

	var slugs []string
	for _, p := range posts {
		slugs = append(slugs, p.Slug)
	}
	assert.Equal(t, []string{"a", "b", "c"}, slugs)
	assert.Equal(t, "Ay", posts[0].Body)
}

func TestCollect_BadPost(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken.md"), "---\ntitle: x\n")

	_, err := Collect(root)
	assert.ErrorIs(t, err, ErrUnterminatedFrontMatter)
}

func TestCollect_MissingRoot(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
