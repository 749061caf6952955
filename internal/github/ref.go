package github

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepoURL extracts owner and name from "owner/name", an https URL, or
// an scp-style git remote. Anything after the name (tree/main, issues, ...)
// is ignored, as is a trailing ".git".
func ParseRepoURL(s string) (owner, name string, err error) {
	ref := strings.TrimSpace(s)
	if ref == "" {
		return "", "", fmt.Errorf("%w: empty reference", ErrInvalidRepo)
	}

	strict := true
	if i := strings.Index(ref, "github.com"); i >= 0 {
		ref = ref[i+len("github.com"):]
		ref = strings.TrimLeft(ref, ":/")
		strict = false
	} else if strings.Contains(ref, "://") {
		return "", "", fmt.Errorf("%w: %q is not a GitHub URL", ErrInvalidRepo, s)
	}

	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	parts := strings.Split(strings.Trim(ref, "/"), "/")
	if len(parts) < 2 || (strict && len(parts) != 2) {
		return "", "", fmt.Errorf("%w: %q (want owner/name)", ErrInvalidRepo, s)
	}

	owner, name = parts[0], strings.TrimSuffix(parts[1], ".git")
	if !segmentPattern.MatchString(owner) || !segmentPattern.MatchString(name) {
		return "", "", fmt.Errorf("%w: %q (want owner/name)", ErrInvalidRepo, s)
	}
	return owner, name, nil
}
