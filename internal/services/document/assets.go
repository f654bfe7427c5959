package document

import (
	"context"

	"github.com/servitec-app/informes-server/internal/storage"
)

// LoadAssets fetches stored references back as image payloads for the
// render step. Fetch failures do not abort: the asset is recorded as
// skipped and rendering continues without it.
func LoadAssets(ctx context.Context, store storage.AssetStore, refs []string) ([]Asset, []SkippedAsset) {
	var loaded []Asset
	var skipped []SkippedAsset
	for _, ref := range refs {
		data, err := store.Fetch(ctx, ref)
		if err != nil {
			skipped = append(skipped, SkippedAsset{Name: ref, Reason: err.Error()})
			continue
		}
		loaded = append(loaded, Asset{Name: ref, Data: data})
	}
	return loaded, skipped
}

// LoadOptional fetches a single optional reference. An empty reference
// yields nothing; a fetch failure yields a skip record carrying the reason,
// same as LoadAssets, so callers can report the omission.
func LoadOptional(ctx context.Context, store storage.AssetStore, ref string) ([]byte, *SkippedAsset) {
	if ref == "" {
		return nil, nil
	}
	data, err := store.Fetch(ctx, ref)
	if err != nil {
		return nil, &SkippedAsset{Name: ref, Reason: err.Error()}
	}
	return data, nil
}
