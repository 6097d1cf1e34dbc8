// Package client talks to the sigauth server over HTTP and keeps the local
// session cache.
//
// HTTPClient posts JSON to the /auth endpoints and validates every 200
// response with the api response schemas before handing it to the caller.
// Non-200 responses become *APIError; transport failures wrap
// ErrUnavailable.
package client
