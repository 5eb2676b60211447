package model

// Alert is a structured incident ready for the error-tracking backend.
// Fingerprint alone decides grouping.
type Alert struct {
	Message     string
	Tags        map[string]string
	Fingerprint []string
}
