// Package client wraps the vault gRPC API for the command-line tool. It
// attaches the optional access token, retries idempotent reads while the
// server is unavailable and maps status codes onto common errors.
package client
