package models

import "strings"

// NormalizeGroup turns "@name", "t.me/name" and full links into a bare username.
func NormalizeGroup(group string) string {
	g := strings.TrimSpace(group)
	for _, prefix := range []string{"https://", "http://"} {
		g = strings.TrimPrefix(g, prefix)
	}
	for _, prefix := range []string{"t.me/", "telegram.me/", "@"} {
		g = strings.TrimPrefix(g, prefix)
	}
	g, _, _ = strings.Cut(g, "/")
	g, _, _ = strings.Cut(g, "?")
	return g
}
