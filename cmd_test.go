package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hanafuda-tools/ldpatch/pkg/diag"
)

func buildBaseDol(t *testing.T) []byte {
	t.Helper()

	buf := make([]byte, 0x140)
	putBE := func(off int, v uint32) {
		buf[off] = byte(v >> 24)
		buf[off+1] = byte(v >> 16)
		buf[off+2] = byte(v >> 8)
		buf[off+3] = byte(v)
	}
	putBE(0x00, 0x100)       // text slot 0 file offset
	putBE(0x48, 0x80003100)  // text slot 0 load address
	putBE(0x90, 0x40)        // text slot 0 length
	for i := 0x100; i < 0x140; i++ {
		buf[i] = byte(i)
	}
	return buf
}

// Scenario 1: empty patch. No symbol list, no input files; the output
// must be byte-identical to the base DOL.
func TestRunDriverEmptyPatch(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.dol")
	outPath := filepath.Join(dir, "out.dol")

	base := buildBaseDol(t)
	if err := os.WriteFile(basePath, base, 0644); err != nil {
		t.Fatalf("writing base DOL: %v", err)
	}

	code := runDriver([]string{
		"--hanafuda-base-dol=" + basePath,
		"-o", outPath,
	})
	if code != 0 {
		t.Fatalf("runDriver exit code = %d, want 0", code)
	}
	if diag.HasErrors() {
		t.Fatal("runDriver should not report errors for an empty patch")
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !bytes.Equal(got, base) {
		t.Fatal("empty patch output should be byte-identical to the base DOL")
	}
}

// Scenario 6: missing the required --hanafuda-base-dol argument.
func TestRunDriverMissingBaseDol(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.dol")

	code := runDriver([]string{"-o", outPath})
	if code == 0 {
		t.Fatal("runDriver should return a non-zero exit code without --hanafuda-base-dol")
	}
	if !diag.HasErrors() {
		t.Fatal("runDriver should set diag.HasErrors() without --hanafuda-base-dol")
	}
	if _, err := os.Stat(outPath); err == nil {
		t.Fatal("runDriver must not write an output file when a required argument is missing")
	}
}
