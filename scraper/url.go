package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/use-agent/profilr/models"
)

// profileURLPattern accepts [scheme://][sub.]linkedin.com/in/<handle> with an
// optional trailing path, query and fragment.
var profileURLPattern = regexp.MustCompile(`(?i)^(?:[a-z][a-z0-9+.\-]*://)?(?:[a-z0-9\-]+\.)*linkedin\.com/in/([^/?#\s]+)(?:[/?#]\S*)?$`)

// loginURLPattern matches the pages a logged-out session is redirected to.
var loginURLPattern = regexp.MustCompile(`(?i)linkedin\.com/(?:login|uas/login|authwall|checkpoint/lg)`)

// ValidateProfileURL checks that raw points at a profile page and returns
// the profile handle.
func ValidateProfileURL(raw string) (string, error) {
	m := profileURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || m[1] == "." || m[1] == ".." {
		return "", models.NewScrapeError(
			models.ErrCodeInvalidURL,
			fmt.Sprintf("not a profile URL: %q", raw),
			nil,
		)
	}
	return m[1], nil
}

// IsLoginURL reports whether u is a sign-in or auth-wall page.
func IsLoginURL(u string) bool {
	return loginURLPattern.MatchString(u)
}

// isChallengeURL reports whether u is a security checkpoint interstitial.
func isChallengeURL(u string) bool {
	return strings.Contains(strings.ToLower(u), "/checkpoint/")
}
