package types

// Envelope is the uniform body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

const (
	StatusSuccess     = "success"
	StatusClientError = "client error"
	StatusServerError = "server error"
)

// StatusFamily maps an HTTP status code to the envelope status word.
func StatusFamily(code int) string {
	switch {
	case code >= 200 && code < 300:
		return StatusSuccess
	case code >= 400 && code < 500:
		return StatusClientError
	case code >= 500:
		return StatusServerError
	}
	// informational and redirects are never produced by handlers
	return StatusSuccess
}
