package linker

import "testing"

func TestGetOutputNameFourBuckets(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{".sdata", ".sdata"},
		{".sdata.foo", ".sdata"},
		{".sbss", ".sdata"},
		{".sdata2", ".sdata2"},
		{".sbss2", ".sdata2"},
		{".text", ".htext"},
		{".text.cold", ".htext"},
		{".data", ".hdata"},
		{".rodata", ".hdata"},
		{".bss", ".hdata"},
		{".whatever_else", ".hdata"},
	}

	for _, c := range cases {
		if got := GetOutputName(c.in, 0); got != c.want {
			t.Errorf("GetOutputName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
