package extract

import (
	"sort"
	"strings"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// maxTraversalDepth caps recursion into the blob. The structure is a tree,
// so this guards against pathological nesting rather than cycles.
const maxTraversalDepth = 64

// FindPosts walks the blob depth-first and collects every post container it
// finds, in discovery order, up to limit. The upstream page emits posts
// newest-first, so callers treat element 0 as the newest post and must not
// re-sort. A matched container's subtree is never descended into again,
// which keeps nested structures from producing duplicate or partial posts.
func FindPosts(blob any, limit int) []feed.Post {
	if limit <= 0 {
		return nil
	}
	posts := make([]feed.Post, 0, limit)
	walk(blob, 0, limit, &posts)
	return posts
}

func walk(node any, depth, limit int, out *[]feed.Post) {
	if len(*out) >= limit || depth > maxTraversalDepth {
		return
	}
	switch n := node.(type) {
	case map[string]any:
		if post, ok := asPost(n); ok {
			*out = append(*out, post)
			return
		}
		// Map iteration order is randomized by the runtime; visit keys
		// sorted so discovery order is stable. Post lists themselves are
		// sequences, which keep document order on their own.
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(n[k], depth+1, limit, out)
			if len(*out) >= limit {
				return
			}
		}
	case []any:
		for _, elem := range n {
			walk(elem, depth+1, limit, out)
			if len(*out) >= limit {
				return
			}
		}
	}
}

// asPost reports whether a mapping node has the shape of a post container:
// a "story" object holding a "message" text field and a "published" time
// field, with an optional explicit "post_id". A post without an explicit id
// is returned with ID empty; the caller derives one.
func asPost(m map[string]any) (feed.Post, bool) {
	story, ok := m["story"].(map[string]any)
	if !ok {
		return feed.Post{}, false
	}
	text, ok := flattenText(story["message"])
	if !ok {
		return feed.Post{}, false
	}
	published, ok := flattenText(story["published"])
	if !ok {
		return feed.Post{}, false
	}
	post := feed.Post{Text: text, Published: published}
	if id, ok := story["post_id"].(string); ok {
		post.ID = id
	}
	return post, true
}

// flattenText normalizes a text-bearing field: a plain string is used as
// is, a {text} fragment contributes its text, and a run-list of fragments
// is concatenated in order with no separator.
func flattenText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			return s, true
		}
		return "", false
	case []any:
		var b strings.Builder
		for _, frag := range t {
			fm, ok := frag.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := fm["text"].(string); ok {
				b.WriteString(s)
			}
		}
		return b.String(), true
	}
	return "", false
}
