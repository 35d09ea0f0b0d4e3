// Package common contains shared constants and sentinel errors used by both the vault server and its CLI client.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// identity provider's bearer token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// ShareRoutePrefix is the path segment of public share links,
// {base_url}/share/{doc_id}.
const ShareRoutePrefix = "/share/"
