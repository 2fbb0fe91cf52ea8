package sipstack

import (
	"fmt"

	"github.com/icholy/digest"
)

// parseChallenge extracts a digest challenge from a WWW-Authenticate header
// value, per spec §4.3's 401/407 handling.
func parseChallenge(headerValue string) (*digest.Challenge, error) {
	chal, err := digest.ParseChallenge(headerValue)
	if err != nil {
		return nil, fmt.Errorf("sipstack: parse challenge: %w", err)
	}
	return chal, nil
}

// authorizationHeader computes an RFC 2617 MD5 digest response over
// username:realm:password and method:uri combined with the server nonce,
// per spec §4.3, and renders it as an Authorization header value.
func authorizationHeader(chal *digest.Challenge, username, password, method, uri string) (string, error) {
	cred, err := digest.Digest(chal, digest.Options{
		Method:   method,
		URI:      uri,
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", fmt.Errorf("sipstack: compute digest: %w", err)
	}
	return cred.String(), nil
}
