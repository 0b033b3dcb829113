package data

import (
	"testing"
	"time"
)

func TestSettings(t *testing.T) {
	db := setUpDatabase(t)

	_, ok, err := GetSetting(db, "motd")
	if err != nil {
		t.Fatalf("GetSetting() returned an unexpected error: %v", err)
	}
	if ok {
		t.Fatal("GetSetting() reported an unset key as present")
	}

	if err := SetSetting(db, "motd", "hello"); err != nil {
		t.Fatalf("SetSetting() returned an unexpected error: %v", err)
	}
	if err := SetSetting(db, "motd", "goodbye"); err != nil {
		t.Fatalf("SetSetting() returned an unexpected error: %v", err)
	}

	value, ok, err := GetSetting(db, "motd")
	if err != nil {
		t.Fatalf("GetSetting() returned an unexpected error: %v", err)
	}
	if !ok || value != "goodbye" {
		t.Errorf("GetSetting() = (%q, %v), want (\"goodbye\", true)", value, ok)
	}
}

func TestWhitelistEnabled(t *testing.T) {
	db := setUpDatabase(t)

	enabled, err := WhitelistEnabled(db)
	if err != nil {
		t.Fatalf("WhitelistEnabled() returned an unexpected error: %v", err)
	}
	if enabled {
		t.Error("WhitelistEnabled() = true with no setting row")
	}

	if err := SetSetting(db, SettingWhitelistEnabled, "true"); err != nil {
		t.Fatalf("SetSetting() returned an unexpected error: %v", err)
	}
	enabled, err = WhitelistEnabled(db)
	if err != nil {
		t.Fatalf("WhitelistEnabled() returned an unexpected error: %v", err)
	}
	if !enabled {
		t.Error("WhitelistEnabled() = false after enabling")
	}
}

func TestWhitelistEntries(t *testing.T) {
	db := setUpDatabase(t)

	for _, username := range []string{"steve", "alex"} {
		if err := CreateWhitelistEntry(db, &WhitelistEntry{
			Username:  username,
			CreatedAt: FormatTime(time.Now()),
		}); err != nil {
			t.Fatalf("error creating test whitelist data: %s", err)
		}
	}

	entry, err := FindWhitelistEntry(db, "steve")
	if err != nil {
		t.Fatalf("FindWhitelistEntry() returned an unexpected error: %v", err)
	}
	if entry == nil {
		t.Fatal("FindWhitelistEntry() did not find a listed username")
	}

	if err := DeleteWhitelistEntry(db, "steve"); err != nil {
		t.Fatalf("DeleteWhitelistEntry() returned an unexpected error: %v", err)
	}

	entry, err = FindWhitelistEntry(db, "steve")
	if err != nil {
		t.Fatalf("FindWhitelistEntry() returned an unexpected error: %v", err)
	}
	if entry != nil {
		t.Errorf("FindWhitelistEntry() returned a removed entry: %v", entry)
	}

	entries, err := ListWhitelistEntries(db)
	if err != nil {
		t.Fatalf("ListWhitelistEntries() returned an unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alex" {
		t.Errorf("ListWhitelistEntries() = %v, want just alex", entries)
	}
}
