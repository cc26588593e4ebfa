// Package middleware provides the HTTP middleware of the candidate service:
// W3C access logging with request IDs, Prometheus request metrics labeled
// by route template, and gzip compression of JSON responses.
package middleware
