// Package http provides the outbound transfer primitive: one GET request
// per call, with failures classified for the download scheduler.
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions())
//	body, err := client.Fetch(ctx, attachmentURL)
//
// # Errors
//
//	var terr *http.TransportError // no response, or body read failed
//	var serr *http.StatusError    // status outside [200, 300)
//	errors.Is(err, http.ErrRateLimited) // status 429
package http
