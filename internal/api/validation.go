package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/extract"
)

// parsePairQuery reads the a and b query parameters of /pairs.
func parsePairQuery(r *http.Request) (a, b string, err error) {
	q := r.URL.Query()
	if a, err = normalizeDomainParam("a", q.Get("a")); err != nil {
		return "", "", err
	}
	if b, err = normalizeDomainParam("b", q.Get("b")); err != nil {
		return "", "", err
	}
	return a, b, nil
}

// normalizeDomainParam accepts either a registrable domain or a full URL.
// URLs are reduced to their registrable domain the same way /go does.
func normalizeDomainParam(name, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}

	if strings.Contains(v, "://") {
		d, err := extract.Domain(v)
		if err != nil {
			return "", fmt.Errorf("invalid %s: %w", name, err)
		}
		return d, nil
	}

	v = strings.TrimSuffix(strings.ToLower(v), ".")
	if len(v) > domain.MaxDomainLength {
		return "", fmt.Errorf("%s exceeds %d characters", name, domain.MaxDomainLength)
	}
	if strings.ContainsAny(v, " /:?#@") {
		return "", fmt.Errorf("invalid %s: not a domain", name)
	}
	return v, nil
}
