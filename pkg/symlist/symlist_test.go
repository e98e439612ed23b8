package symlist

import (
	"strings"
	"testing"
)

// Scenario 2's input file, per spec.md section 8.
func TestLoadParsesAddressAndName(t *testing.T) {
	entries, err := parse(strings.NewReader("0x80003100 foo\n0xDEADBEEF bar\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0] != (Entry{Address: 0x80003100, Name: "foo"}) {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
	if entries[1] != (Entry{Address: 0xDEADBEEF, Name: "bar"}) {
		t.Fatalf("entries[1] = %+v", entries[1])
	}
}

func TestLoadAcceptsDecimalAndAutoRadix(t *testing.T) {
	entries, err := parse(strings.NewReader("100 decAddr\n0100 octAddr\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if entries[0].Address != 100 {
		t.Fatalf("decimal address = %d, want 100", entries[0].Address)
	}
	if entries[1].Address != 64 {
		t.Fatalf("octal address 0100 = %d, want 64", entries[1].Address)
	}
}

func TestLoadSkipsBlankAndUnparseableLines(t *testing.T) {
	entries, err := parse(strings.NewReader("\n   \nnotanumber sym\n0x10 ok\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "ok" {
		t.Fatalf("entries = %+v, want a single ok entry", entries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/to/symbols.txt"); err == nil {
		t.Fatal("Load should fail for a missing file")
	}
}
