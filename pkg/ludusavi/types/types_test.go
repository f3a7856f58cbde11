package types

import (
	"errors"
	"testing"
)

func TestFoundAnything(t *testing.T) {
	s := NewScanInfo("game")
	if s.FoundAnything() {
		t.Error("empty scan should not report anything found")
	}

	s.Files["/save/a"] = ScannedFile{Path: "/save/a", Size: 1}
	if !s.FoundAnything() {
		t.Error("scan with a file should report something found")
	}

	r := NewScanInfo("game")
	r.Registry["HKEY_CURRENT_USER/Software/Foo"] = ScannedRegistry{Path: "HKEY_CURRENT_USER/Software/Foo"}
	if !r.FoundAnything() {
		t.Error("scan with a registry key should report something found")
	}
}

func TestProcessedBytes(t *testing.T) {
	s := NewScanInfo("game")
	s.Files["/a"] = ScannedFile{Path: "/a", Size: 100}
	s.Files["/b"] = ScannedFile{Path: "/b", Size: 50, Ignored: true}
	s.Files["/c"] = ScannedFile{Path: "/c", Size: 25}

	info := NewBackupInfo()
	info.FailFile("/c", errors.New("boom"))

	if got := s.TotalBytes(); got != 175 {
		t.Errorf("TotalBytes = %d, want 175", got)
	}
	if got := s.ProcessedBytes(info); got != 100 {
		t.Errorf("ProcessedBytes = %d, want 100", got)
	}
}

func TestBackupInfoSuccessful(t *testing.T) {
	info := NewBackupInfo()
	if !info.Successful() {
		t.Error("empty BackupInfo should be successful")
	}

	info.FailRegistry("HKEY_CURRENT_USER/Key", errors.New("denied"))
	if info.Successful() {
		t.Error("BackupInfo with a failure should not be successful")
	}
	if !info.RegistryFailed("HKEY_CURRENT_USER/Key") {
		t.Error("RegistryFailed should report the recorded key")
	}
}

func TestOperationStatusAddGame(t *testing.T) {
	var status OperationStatus

	processed := NewScanInfo("foo")
	processed.Files["/a"] = ScannedFile{Path: "/a", Size: 100}
	processed.Change = ScanChangeNew
	status.AddGame(processed, NewBackupInfo(), true)

	ignored := NewScanInfo("bar")
	ignored.Files["/b"] = ScannedFile{Path: "/b", Size: 50}
	ignored.Change = ScanChangeDifferent
	status.AddGame(ignored, NewBackupInfo(), false)

	if status.TotalGames != 2 || status.ProcessedGames != 1 {
		t.Errorf("games = %d/%d, want 2 total 1 processed", status.TotalGames, status.ProcessedGames)
	}
	if status.TotalBytes != 150 || status.ProcessedBytes != 100 {
		t.Errorf("bytes = %d/%d, want 150 total 100 processed", status.TotalBytes, status.ProcessedBytes)
	}
	if status.ChangedGames.New != 1 || status.ChangedGames.Different != 1 {
		t.Errorf("changed = %+v, want one new and one different", status.ChangedGames)
	}
}

func TestBackupID(t *testing.T) {
	if !LatestBackup.IsLatest() {
		t.Error("LatestBackup should be the latest sentinel")
	}
	if NamedBackup("backup-1").IsLatest() {
		t.Error("named id should not be latest")
	}
}

func TestSortedFiles(t *testing.T) {
	s := NewScanInfo("game")
	s.Files["/b"] = ScannedFile{Path: "/b"}
	s.Files["/a"] = ScannedFile{Path: "/a"}

	sorted := s.SortedFiles()
	if len(sorted) != 2 || sorted[0].Path != "/a" || sorted[1].Path != "/b" {
		t.Errorf("SortedFiles = %v, want /a then /b", sorted)
	}
}
