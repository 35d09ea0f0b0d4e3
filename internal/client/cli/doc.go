// Package cli implements the redactvault command-line client.
//
// Commands:
//   - upload: seal an original under a password and store its redacted twin
//   - preview / fetch: inspect a document and download the redacted artifact
//   - unlock: recover the original with the document password
//   - list: documents uploaded with the current access token
//   - genpass: print a random document password
//
// Passwords are read from the terminal without echo, or from standard input
// with --password-stdin. They never appear on the command line.
package cli
