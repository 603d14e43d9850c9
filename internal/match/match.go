// Package match decides whether a post is interesting.
package match

import (
	"strings"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// Matches performs a case-insensitive substring test of keyword against the
// post text. The empty keyword matches every post. No tokenization, no
// normalization beyond lower-casing.
func Matches(post feed.Post, keyword string) bool {
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(post.Text), strings.ToLower(keyword))
}
