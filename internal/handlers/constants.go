package handlers

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 64 << 20

	RequestIDHeader = "X-Request-ID"

	ErrInvalidJSON  = "Invalid JSON body"
	ErrInvalidID    = "Invalid id"
	ErrInvalidQuery = "Invalid query parameter"
)
