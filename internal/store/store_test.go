package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "voxmix.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSettingRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.GetSetting(ctx, "missing"); err != nil || ok {
		t.Fatalf("GetSetting(missing): ok=%v err=%v", ok, err)
	}

	if err := st.SetSetting(ctx, "room.name", "atrium"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	got, ok, err := st.GetSetting(ctx, "room.name")
	if err != nil || !ok || got != "atrium" {
		t.Fatalf("GetSetting: got=%q ok=%v err=%v", got, ok, err)
	}

	if err := st.SetSetting(ctx, "room.name", "lobby"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	got, _, _ = st.GetSetting(ctx, "room.name")
	if got != "lobby" {
		t.Errorf("GetSetting after overwrite: got %q, want lobby", got)
	}
}

func TestGetAllSettings(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_ = st.SetSetting(ctx, "a", "1")
	_ = st.SetSetting(ctx, "b", "2")

	all, err := st.GetAllSettings(ctx)
	if err != nil {
		t.Fatalf("GetAllSettings: %v", err)
	}
	if all["a"] != "1" || all["b"] != "2" {
		t.Errorf("GetAllSettings: got %v", all)
	}
}

func TestInjectorPresetCRUD(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	p := InjectorPreset{
		ID:               "preset-1",
		DisplayName:      "Fountain Ambience",
		StreamID:         "fountain",
		PosX:             1, PosY: 0, PosZ: 2,
		BearingDeg:       90,
		AttenuationRatio: 0.8,
	}
	if err := st.CreateInjectorPreset(ctx, p); err != nil {
		t.Fatalf("CreateInjectorPreset: %v", err)
	}

	got, err := st.GetInjectorPreset(ctx, "preset-1")
	if err != nil {
		t.Fatalf("GetInjectorPreset: %v", err)
	}
	if got.DisplayName != p.DisplayName || got.StreamID != p.StreamID || got.AttenuationRatio != p.AttenuationRatio {
		t.Errorf("GetInjectorPreset: got %+v, want matching %+v", got, p)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be populated")
	}

	list, err := st.ListInjectorPresets(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListInjectorPresets: got %d entries, err=%v", len(list), err)
	}

	if err := st.DeleteInjectorPreset(ctx, "preset-1"); err != nil {
		t.Fatalf("DeleteInjectorPreset: %v", err)
	}
	if _, err := st.GetInjectorPreset(ctx, "preset-1"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("GetInjectorPreset after delete: got %v, want ErrPresetNotFound", err)
	}
}

func TestDeleteInjectorPresetMissing(t *testing.T) {
	st := openTestStore(t)
	if err := st.DeleteInjectorPreset(context.Background(), "nope"); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("DeleteInjectorPreset(missing): got %v, want ErrPresetNotFound", err)
	}
}

func TestCreateInjectorPresetRequiresFields(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.CreateInjectorPreset(ctx, InjectorPreset{}); err == nil {
		t.Error("expected error for empty preset")
	}
}

func TestCreateInjectorPresetDuplicateStreamIDRejected(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := InjectorPreset{ID: "p1", DisplayName: "One", StreamID: "dup"}
	if err := st.CreateInjectorPreset(ctx, base); err != nil {
		t.Fatalf("CreateInjectorPreset: %v", err)
	}
	dup := InjectorPreset{ID: "p2", DisplayName: "Two", StreamID: "dup"}
	if err := st.CreateInjectorPreset(ctx, dup); err == nil {
		t.Error("expected unique constraint violation for duplicate stream id")
	}
}
