package sde

import "context"

// IsCurrent reports whether the local token is byte-equal to the remote one.
func IsCurrent(local, remote string) bool {
	return local == remote
}

// VersionCheck fetches the remote dataset token.
type VersionCheck struct {
	URL     string
	Fetcher Fetcher
}

// FetchRemoteToken returns the current upstream version identifier.
func (v VersionCheck) FetchRemoteToken(ctx context.Context) (string, error) {
	return v.Fetcher.FetchToken(ctx, v.URL)
}
