package linker

import (
	"bytes"
	"testing"
)

func padField(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

func buildArMember(name string, body []byte) []byte {
	var hdr bytes.Buffer
	hdr.Write(padField(name+"/", 16))
	hdr.Write(padField("0", 12)) // date
	hdr.Write(padField("0", 6))  // uid
	hdr.Write(padField("0", 6))  // gid
	hdr.Write(padField("644", 8))
	hdr.Write(padField(itoa(len(body)), 10))
	hdr.Write([]byte{0x60, 0x0a}) // Fmag

	buf := append(hdr.Bytes(), body...)
	if len(buf)%2 == 1 {
		buf = append(buf, '\n')
	}
	return buf
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestReadFatArchiveMembersShortName(t *testing.T) {
	body := []byte("hello world!")
	member := buildArMember("foo.o", body)

	contents := append([]byte("!<arch>\n"), member...)
	file := &File{Name: "libfoo.a", Contents: contents}

	members := ReadArchiveMembers(file)
	if len(members) != 1 {
		t.Fatalf("len(members) = %d, want 1", len(members))
	}
	if members[0].Name != "foo.o" {
		t.Errorf("member name = %q, want %q", members[0].Name, "foo.o")
	}
	if !bytes.Equal(members[0].Contents, body) {
		t.Errorf("member contents = %q, want %q", members[0].Contents, body)
	}
	if members[0].Parent != file {
		t.Error("member.Parent should point back to the archive file")
	}
}
