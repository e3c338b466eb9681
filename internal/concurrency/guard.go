// Package concurrency implements optimistic edit conflict detection.
//
// A record's updated_at timestamp doubles as its version. Clients echo the
// serialized value back on update; any difference means someone else wrote
// the record in between.
package concurrency

import (
	"time"

	"visitas/internal/apperr"
)

// TokenLayout is the serialized form of a version. It is the layout
// encoding/json uses for time.Time, so a record's "updatedAt" as rendered in
// a response is already a valid token.
const TokenLayout = time.RFC3339Nano

// VersionToken serializes a record's last-modified time
func VersionToken(t time.Time) string {
	return t.UTC().Format(TokenLayout)
}

// Stamp returns the current time truncated to what a version token can carry,
// so that a stored timestamp always round-trips through its token.
func Stamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Millisecond)
}

// Check compares the client's token with the stored version. A nil token
// skips the check entirely (last writer wins). On mismatch it returns an
// *apperr.ConflictError holding the server version and snapshot.
func Check(stored time.Time, token *string, snapshot any) error {
	if token == nil {
		return nil
	}
	serverVersion := VersionToken(stored)
	if *token == serverVersion {
		return nil
	}
	return &apperr.ConflictError{ServerVersion: serverVersion, ServerSnapshot: snapshot}
}
