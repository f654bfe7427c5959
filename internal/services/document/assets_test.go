package document

import (
	"context"
	"fmt"
	"testing"
)

// mapStore resolves references from memory; anything else fails to fetch
type mapStore struct {
	objects map[string][]byte
}

func (s *mapStore) Store(ctx context.Context, namespace, name string, data []byte, contentType string) (string, error) {
	return namespace + "/" + name, nil
}

func (s *mapStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	data, ok := s.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object %s missing", ref)
	}
	return data, nil
}

func (s *mapStore) PublicURL(ref string) string {
	return "http://localhost/public/" + ref
}

func TestLoadAssetsRecordsFetchFailures(t *testing.T) {
	store := &mapStore{objects: map[string][]byte{
		"informes/x/foto_1.png": testPNG(t),
	}}

	loaded, skipped := LoadAssets(context.Background(), store, []string{
		"informes/x/foto_1.png",
		"informes/x/foto_2.png",
	})

	if len(loaded) != 1 || loaded[0].Name != "informes/x/foto_1.png" {
		t.Errorf("Expected one loaded asset, got %v", loaded)
	}
	if len(skipped) != 1 {
		t.Fatalf("Expected one skipped asset, got %v", skipped)
	}
	if skipped[0].Name != "informes/x/foto_2.png" || skipped[0].Reason == "" {
		t.Errorf("Skip record must carry the reference and reason, got %+v", skipped[0])
	}
}

func TestLoadOptionalRecordsFetchFailure(t *testing.T) {
	store := &mapStore{objects: map[string][]byte{
		"informes/x/firma_tecnico.png": testPNG(t),
	}}
	ctx := context.Background()

	data, skip := LoadOptional(ctx, store, "informes/x/firma_tecnico.png")
	if data == nil || skip != nil {
		t.Errorf("Present reference: data=%v skip=%+v", data != nil, skip)
	}

	// A broken signature reference is reported the same way a photo is,
	// not silently dropped
	data, skip = LoadOptional(ctx, store, "informes/x/firma_cliente.png")
	if data != nil {
		t.Error("Unresolvable reference must yield no bytes")
	}
	if skip == nil {
		t.Fatal("Unresolvable reference must yield a skip record")
	}
	if skip.Name != "informes/x/firma_cliente.png" || skip.Reason == "" {
		t.Errorf("Skip record must carry the reference and reason, got %+v", skip)
	}

	if data, skip = LoadOptional(ctx, store, ""); data != nil || skip != nil {
		t.Errorf("Empty reference is not an omission: data=%v skip=%+v", data != nil, skip)
	}
}
