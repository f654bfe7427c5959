package storage

import "context"

// AssetStore persists binary uploads (photos, attachments, signatures) and
// generated artifacts (PDFs) and resolves them back for the render step.
// Store is idempotent: repeating a call with the same namespace and name
// overwrites the previous object.
type AssetStore interface {
	// Store writes data and returns a stable reference for later Fetch
	// and PublicURL calls.
	Store(ctx context.Context, namespace, name string, data []byte, contentType string) (string, error)

	// Fetch reads an object back by the reference Store returned.
	Fetch(ctx context.Context, ref string) ([]byte, error)

	// PublicURL resolves a reference to its externally reachable URL.
	PublicURL(ref string) string
}
