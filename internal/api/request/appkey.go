package request

// SaveAppKey holds the request body for persisting an application
// encryption key.
type SaveAppKey struct {
	Key string `json:"key" validate:"required,len=32"`
}

// ValidateAppKey holds the request body for checking a key's format.
type ValidateAppKey struct {
	Key string `json:"key" validate:"required"`
}
