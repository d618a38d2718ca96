package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEntryRoundTripAcrossClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.tar.gz")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.PutEntry("k1", "v1"); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	got, err := c2.GetEntry("k1", nil)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got != "v1" {
		t.Errorf("GetEntry = %v, want v1", got)
	}
}

func TestFileRoundTripWithArbitraryBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.tar.gz")
	payload := []byte{0x00, 0x01, 0xff, 0xfe, 'h', 'i'}

	c, err := Open(path, WithEncryptionKey(nil))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.PutFile("blob1", payload); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path, WithEncryptionKey(nil))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	got, err := c2.GetFile("blob1", nil)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	gotBytes, ok := got.([]byte)
	if !ok {
		t.Fatalf("GetFile returned %T, want []byte", got)
	}
	if !bytes.Equal(gotBytes, payload) {
		t.Errorf("GetFile = %v, want %v", gotBytes, payload)
	}
}

func TestFileEncryptionIsOpaqueOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.tar.gz")
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	c, err := Open(path, WithEncryptionKey(key))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	secret := []byte("top secret payload, easy to spot in plaintext")
	if err := c.PutFile("secret", secret); err != nil {
		t.Fatalf("PutFile: %v", err)
	}

	raw, err := c.GetFile("secret", nil)
	if err != nil {
		t.Fatalf("GetFile before close: %v", err)
	}
	if !bytes.Equal(raw.([]byte), secret) {
		t.Fatalf("GetFile before close = %v, want %v", raw, secret)
	}

	onDisk, err := os.ReadFile(c.filePath("secret"))
	if err != nil {
		t.Fatalf("read blob file directly: %v", err)
	}
	if bytes.Contains(onDisk, secret) {
		t.Errorf("plaintext payload found in on-disk blob: %q", onDisk)
	}
	if !isEncryptedBlob(onDisk) {
		t.Errorf("on-disk blob missing encryption version marker")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := Open(path, WithEncryptionKey(key))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	got, err := c2.GetFile("secret", nil)
	if err != nil {
		t.Fatalf("GetFile after reopen: %v", err)
	}
	if !bytes.Equal(got.([]byte), secret) {
		t.Errorf("GetFile after reopen = %v, want %v", got, secret)
	}
}

func TestCloseIsIdempotentAndClosesOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.tar.gz")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}
	if err := c.PutEntry("k", "v"); err != ErrClosed {
		t.Errorf("PutEntry after close = %v, want ErrClosed", err)
	}
}

func TestEphemeralCacheWritesNothingToDisk(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.PutEntry("k", "v"); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(c.tmpDir); !os.IsNotExist(err) {
		t.Errorf("temp dir %q still present after Close", c.tmpDir)
	}
}

func TestEntriesAndFilesAreDisjointNamespaces(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.PutEntry("shared", "entry-value"); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	hasFile, err := c.HasFile("shared")
	if err != nil {
		t.Fatalf("HasFile: %v", err)
	}
	if hasFile {
		t.Errorf("HasFile(%q) = true, want false (entries and files are disjoint)", "shared")
	}
}
