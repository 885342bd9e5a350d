package registry

import (
	"testing"

	"github.com/townlet/townlet-server/music"
	"github.com/townlet/townlet-server/town/model"
	"github.com/townlet/townlet-server/video"
)

func newTestRegistry() (*Registry, *music.FakeAdapter) {
	musicSync := music.NewFakeAdapter()
	return New(video.NewFakeProvider(), musicSync), musicSync
}

func TestCreateTown(t *testing.T) {
	reg, musicSync := newTestRegistry()

	t.Run("creates and indexes the town", func(t *testing.T) {
		tc, password, err := reg.CreateTown("My Town", true)
		if err != nil {
			t.Fatalf("Failed to create town: %v", err)
		}
		if len(tc.TownID()) != model.TownIDLength {
			t.Errorf("Expected %d-character town ID, got %d", model.TownIDLength, len(tc.TownID()))
		}
		if password == "" {
			t.Error("Expected a clear-text update password")
		}
		if got, err := reg.Get(tc.TownID()); err != nil || got != tc {
			t.Error("Expected to look the town up by ID")
		}
		if !musicSync.IsTownRegistered(tc.TownID()) {
			t.Error("Expected town registered with the music adapter")
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		if _, _, err := reg.CreateTown("", true); err != ErrEmptyTownName {
			t.Errorf("Expected ErrEmptyTownName, got %v", err)
		}
	})

	t.Run("IDs are unique", func(t *testing.T) {
		a, _, _ := reg.CreateTown("A", false)
		b, _, _ := reg.CreateTown("B", false)
		if a.TownID() == b.TownID() {
			t.Error("Expected distinct town IDs")
		}
	})
}

func TestGet(t *testing.T) {
	reg, _ := newTestRegistry()
	if _, err := reg.Get("nope1234"); err != ErrTownNotFound {
		t.Errorf("Expected ErrTownNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	reg, _ := newTestRegistry()
	listed, _, _ := reg.CreateTown("Public Town", true)
	reg.CreateTown("Hidden Town", false)

	listings := reg.List()
	if len(listings) != 1 {
		t.Fatalf("Expected 1 listed town, got %d", len(listings))
	}
	if listings[0].TownID != listed.TownID() {
		t.Error("Expected the public town to be listed")
	}
	if listings[0].FriendlyName != "Public Town" {
		t.Errorf("Expected friendly name 'Public Town', got '%s'", listings[0].FriendlyName)
	}
	if listings[0].MaximumOccupancy != model.DefaultMaxOccupancy {
		t.Errorf("Expected maximum occupancy %d, got %d", model.DefaultMaxOccupancy, listings[0].MaximumOccupancy)
	}
}

func TestUpdate(t *testing.T) {
	reg, _ := newTestRegistry()
	tc, password, err := reg.CreateTown("Old Name", false)
	if err != nil {
		t.Fatalf("Failed to create town: %v", err)
	}

	strPtr := func(s string) *string { return &s }
	boolPtr := func(b bool) *bool { return &b }

	t.Run("updates name and visibility", func(t *testing.T) {
		if err := reg.Update(tc.TownID(), password, strPtr("New Name"), boolPtr(true)); err != nil {
			t.Fatalf("Failed to update town: %v", err)
		}
		if tc.FriendlyName() != "New Name" {
			t.Errorf("Expected renamed town, got '%s'", tc.FriendlyName())
		}
		if !tc.IsPubliclyListed() {
			t.Error("Expected town now listed")
		}
	})

	t.Run("nil fields are left untouched", func(t *testing.T) {
		if err := reg.Update(tc.TownID(), password, nil, boolPtr(false)); err != nil {
			t.Fatalf("Failed to update town: %v", err)
		}
		if tc.FriendlyName() != "New Name" {
			t.Error("Name should be untouched when nil")
		}
		if tc.IsPubliclyListed() {
			t.Error("Expected town unlisted")
		}
	})

	t.Run("wrong password changes nothing", func(t *testing.T) {
		if err := reg.Update(tc.TownID(), "wrong", strPtr("Hijacked"), nil); err != ErrInvalidPassword {
			t.Errorf("Expected ErrInvalidPassword, got %v", err)
		}
		if tc.FriendlyName() != "New Name" {
			t.Error("Name should be unchanged after rejected update")
		}
	})

	t.Run("no fields to set", func(t *testing.T) {
		if err := reg.Update(tc.TownID(), password, nil, nil); err != ErrNoFieldsToSet {
			t.Errorf("Expected ErrNoFieldsToSet, got %v", err)
		}
	})

	t.Run("empty new name is rejected", func(t *testing.T) {
		if err := reg.Update(tc.TownID(), password, strPtr(""), nil); err != ErrEmptyTownName {
			t.Errorf("Expected ErrEmptyTownName, got %v", err)
		}
	})

	t.Run("unknown town", func(t *testing.T) {
		if err := reg.Update("nope1234", password, strPtr("X"), nil); err != ErrTownNotFound {
			t.Errorf("Expected ErrTownNotFound, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	t.Run("destroys the town and its players", func(t *testing.T) {
		reg, musicSync := newTestRegistry()
		tc, password, _ := reg.CreateTown("Doomed", true)
		if _, err := tc.AddPlayer(model.NewPlayer("alice")); err != nil {
			t.Fatalf("Failed to add player: %v", err)
		}

		if err := reg.Delete(tc.TownID(), password); err != nil {
			t.Fatalf("Failed to delete town: %v", err)
		}
		if _, err := reg.Get(tc.TownID()); err != ErrTownNotFound {
			t.Error("Expected town gone from the index")
		}
		if tc.Occupancy() != 0 {
			t.Error("Expected players disconnected")
		}
		if musicSync.IsTownRegistered(tc.TownID()) {
			t.Error("Expected town unregistered from the music adapter")
		}
	})

	t.Run("wrong password leaves the town intact", func(t *testing.T) {
		reg, _ := newTestRegistry()
		tc, _, _ := reg.CreateTown("Safe", true)
		tc.AddPlayer(model.NewPlayer("alice"))

		if err := reg.Delete(tc.TownID(), "wrong"); err != ErrInvalidPassword {
			t.Errorf("Expected ErrInvalidPassword, got %v", err)
		}
		if _, err := reg.Get(tc.TownID()); err != nil {
			t.Error("Town should survive a rejected delete")
		}
		if tc.Occupancy() != 1 {
			t.Error("Players should survive a rejected delete")
		}
	})

	t.Run("unknown town", func(t *testing.T) {
		reg, _ := newTestRegistry()
		if err := reg.Delete("nope1234", "pw"); err != ErrTownNotFound {
			t.Errorf("Expected ErrTownNotFound, got %v", err)
		}
	})
}

func TestRemoveIfEmpty(t *testing.T) {
	reg, musicSync := newTestRegistry()
	tc, _, _ := reg.CreateTown("Transient", true)
	player := model.NewPlayer("alice")
	session, err := tc.AddPlayer(player)
	if err != nil {
		t.Fatalf("Failed to add player: %v", err)
	}

	t.Run("occupied town stays", func(t *testing.T) {
		if reg.RemoveIfEmpty(tc.TownID()) {
			t.Error("Occupied town should not be removed")
		}
		if reg.Count() != 1 {
			t.Errorf("Expected 1 town, got %d", reg.Count())
		}
	})

	t.Run("emptied town is removed", func(t *testing.T) {
		if err := tc.DestroySession(session); err != nil {
			t.Fatalf("Failed to destroy session: %v", err)
		}
		if !reg.RemoveIfEmpty(tc.TownID()) {
			t.Error("Expected empty town to be removed")
		}
		if reg.Count() != 0 {
			t.Errorf("Expected 0 towns, got %d", reg.Count())
		}
		if musicSync.IsTownRegistered(tc.TownID()) {
			t.Error("Expected town unregistered from the music adapter")
		}
	})

	t.Run("unknown town", func(t *testing.T) {
		if reg.RemoveIfEmpty("nope1234") {
			t.Error("Unknown town should report not removed")
		}
	})
}

func TestTowns(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.CreateTown("Listed", true)
	reg.CreateTown("Unlisted", false)

	if got := len(reg.Towns()); got != 2 {
		t.Errorf("Expected all towns regardless of visibility, got %d", got)
	}
}
