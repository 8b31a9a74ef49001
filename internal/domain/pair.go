package domain

import "errors"

// MaxDomainLength matches the width of the domain1/domain2 columns.
const MaxDomainLength = 100

var (
	// ErrPairNotFound is returned when no row exists for the exact orientation.
	ErrPairNotFound = errors.New("domain pair not found")

	// ErrDuplicatePair is returned by Create when the pair already exists in
	// either orientation, typically because a concurrent request created it first.
	ErrDuplicatePair = errors.New("domain pair already exists")
)

// Pair is the counter row for two registrable domains, stored in the
// orientation of the request that first created it.
type Pair struct {
	ID      int64
	Domain1 string
	Domain2 string

	One2Two int64 // redirects Domain1 -> Domain2
	Two2One int64 // redirects Domain2 -> Domain1
}

// Totals summarises the pair table.
type Totals struct {
	Pairs     int64
	Redirects int64
}
