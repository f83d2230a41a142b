// Package auth supplies the bearer credential attached to upstream calls.
// Inbound authentication is left to whatever sits in front of the server.
package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

// Source describes where a token came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceFile     Source = "file"
	SourceNone     Source = "none"
)

// Credential is the resolved upstream credential. TokenSource is nil when no
// token is configured, in which case requests go out without an
// Authorization header.
type Credential struct {
	TokenSource oauth2.TokenSource
	Source      Source
}

// New resolves the credential once at startup: an explicit token wins, then
// the contents of tokenFile, then nothing. A tokenFile that does not exist is
// treated as "no token"; any other read failure is returned.
func New(token, tokenFile string) (*Credential, error) {
	if tok := strings.TrimSpace(token); tok != "" {
		return &Credential{TokenSource: staticSource(tok), Source: SourceExplicit}, nil
	}

	if tokenFile != "" {
		tok, err := ReadTokenFile(tokenFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if tok != "" {
			return &Credential{TokenSource: staticSource(tok), Source: SourceFile}, nil
		}
	}

	return &Credential{Source: SourceNone}, nil
}

// ReadTokenFile reads a mounted token, trimming surrounding whitespace.
func ReadTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Transport wraps base so every request carries the bearer token. With no
// token the base transport is returned untouched.
func (c *Credential) Transport(base http.RoundTripper) http.RoundTripper {
	if c == nil || c.TokenSource == nil {
		return base
	}
	return &oauth2.Transport{Source: c.TokenSource, Base: base}
}

func staticSource(tok string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
}
