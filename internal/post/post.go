// Package post reads markdown posts from a content directory.
package post

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnterminatedFrontMatter is returned when a front matter block is opened
// but never closed.
var ErrUnterminatedFrontMatter = errors.New("post: unterminated front matter")

var extensions = map[string]bool{".md": true, ".mdx": true}

// FrontMatter holds the fields read from a post's YAML header.
type FrontMatter struct {
	Title string `yaml:"title"`
	Slug  string `yaml:"slug"`
	Draft bool   `yaml:"draft"`
}

// Post is a markdown document with its metadata.
type Post struct {
	FrontMatter
	// Path is the file the post was read from, empty for parsed bytes.
	Path string
	// Body is the markdown after the front matter.
	Body string
}

// Parse splits optional YAML front matter from the markdown body.
func Parse(data []byte) (Post, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	if !strings.HasPrefix(text, "---\n") {
		return Post{Body: text}, nil
	}

	rest := text[len("---\n"):]
	var header, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		body = rest[len("---\n"):]
	case rest == "---":
	default:
		end := strings.Index(rest, "\n---\n")
		if end < 0 {
			if !strings.HasSuffix(rest, "\n---") {
				return Post{}, ErrUnterminatedFrontMatter
			}
			end = len(rest) - len("\n---")
			header = rest[:end]
			break
		}
		header = rest[:end]
		body = rest[end+len("\n---\n"):]
	}

	var p Post
	if err := yaml.Unmarshal([]byte(header), &p.FrontMatter); err != nil {
		return Post{}, fmt.Errorf("post: parse front matter: %w", err)
	}
	p.Body = body
	return p, nil
}

// Load reads the post at path. When the front matter has no slug, the slug
// is the path relative to root without its extension; an index file takes
// its directory's name.
func Load(root, path string) (Post, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from a directory walk or the caller
	if err != nil {
		return Post{}, fmt.Errorf("read post: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return Post{}, fmt.Errorf("%s: %w", path, err)
	}
	p.Path = path

	if p.Slug == "" {
		p.Slug, err = slugFromPath(root, path)
		if err != nil {
			return Post{}, err
		}
	}
	p.Slug = strings.Trim(p.Slug, "/")
	return p, nil
}

func slugFromPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("post: relative path: %w", err)
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	if rel == "index" {
		return "", nil
	}
	return strings.TrimSuffix(rel, "/index"), nil
}

// Collect loads every markdown post under root, skipping drafts, sorted by
// slug.
func Collect(root string) ([]Post, error) {
	var posts []Post
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		p, err := Load(root, path)
		if err != nil {
			return err
		}
		if !p.Draft {
			posts = append(posts, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect posts: %w", err)
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].Slug < posts[j].Slug })
	return posts, nil
}
