// Package extract validates go-request URLs and reduces them to their
// registrable domain (public suffix plus one label).
package extract

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/djlord-it/linkswap/internal/domain"
)

// MaxURLLength is the longest URL accepted from a go request.
const MaxURLLength = 500

// ErrInvalid covers every reason a URL has no usable registrable domain.
var ErrInvalid = errors.New("no registrable domain")

// ValidURL reports whether raw parses as an absolute http(s) URL with a host.
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Domain returns the registrable domain of raw, e.g.
// "https://a.b.example.co.uk:8443/x?y=1" -> "example.co.uk".
func Domain(raw string) (string, error) {
	if !ValidURL(raw) {
		return "", ErrInvalid
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalid
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || net.ParseIP(host) != nil {
		return "", ErrInvalid
	}

	if strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") || strings.Contains(host, "..") {
		return "", ErrInvalid
	}

	suffix, err := icannSuffix(host)
	if err != nil || suffix == host {
		return "", ErrInvalid
	}
	rest := strings.TrimSuffix(host, "."+suffix)
	registrable := rest[strings.LastIndexByte(rest, '.')+1:] + "." + suffix
	if len(registrable) > domain.MaxDomainLength {
		return "", ErrInvalid
	}
	return registrable, nil
}

// icannSuffix returns the longest ICANN public suffix of host. Private
// entries such as github.io or blogspot.com are skipped, so their customer
// subdomains collapse onto the private suffix itself.
func icannSuffix(host string) (string, error) {
	suffix, icann := publicsuffix.PublicSuffix(host)
	for !icann {
		// A single unlisted label comes from the implicit "*" rule.
		i := strings.IndexByte(suffix, '.')
		if i < 0 {
			return "", ErrInvalid
		}
		suffix, icann = publicsuffix.PublicSuffix(suffix[i+1:])
	}
	return suffix, nil
}
