package domain

import "net/http"

type Outcome string

const (
	OutcomeRedirect     Outcome = "redirect"
	OutcomeInterstitial Outcome = "interstitial"
	OutcomeRejected     Outcome = "rejected"
)

// Rejection reasons. Everything except ReasonInternal is an input error.
const (
	ReasonMissingParameters = "missing parameters"
	ReasonParameterTooLong  = "parameter too long"
	ReasonInvalidURL        = "invalid URL"
	ReasonDomainExtraction  = "domain extraction failed"
	ReasonRefererMismatch   = "referer mismatch"
	ReasonInternal          = "internal error"
)

// Decision is the result of one go request.
type Decision struct {
	Outcome Outcome

	// URL is the redirect target for OutcomeRedirect and the back link
	// for OutcomeInterstitial.
	URL    string
	Reason string
}

func Redirect(url string) Decision {
	return Decision{Outcome: OutcomeRedirect, URL: url}
}

func Interstitial(backURL string) Decision {
	return Decision{Outcome: OutcomeInterstitial, URL: backURL}
}

func Rejected(reason string) Decision {
	return Decision{Outcome: OutcomeRejected, Reason: reason}
}

// Status returns the HTTP status a boundary should use for a rejection.
// Non-rejected decisions report 0.
func (d Decision) Status() int {
	if d.Outcome != OutcomeRejected {
		return 0
	}
	if d.Reason == ReasonInternal {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
