package provision

import (
	"net/url"
	"strings"
)

// SafeRedirect returns target when it stays on this site, else fallback.
//
// Accepted: a path beginning with a single "/" (not "//" and not "/\"), or
// an absolute http or https URL whose host equals host and that carries no
// user info.
func SafeRedirect(target, host, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsAny(target, "\\\r\n\t") {
		return fallback
	}

	u, err := url.Parse(target)
	if err != nil {
		return fallback
	}

	if strings.HasPrefix(target, "/") {
		if strings.HasPrefix(target, "//") || u.Scheme != "" || u.Host != "" {
			return fallback
		}
		return target
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fallback
	}
	if u.User != nil || u.Host == "" || host == "" || !strings.EqualFold(u.Host, host) {
		return fallback
	}
	return target
}
