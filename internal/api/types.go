package api

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// PairResponse reports a pair in its stored orientation.
type PairResponse struct {
	Domain1 string `json:"domain1"`
	Domain2 string `json:"domain2"`
	One2Two int64  `json:"one2two"`
	Two2One int64  `json:"two2one"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
