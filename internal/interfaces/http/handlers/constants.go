package handlers

// HTTP handler limits for the convert endpoint.
const (
	maxSourceBytes = 10 << 20 // 10 MiB, per the source image size ceiling
	contextTimeout = 30       // default request context timeout in seconds
)
