package jobqueue

import "testing"

func TestFormatMemory(t *testing.T) {
	const (
		ki = 1024
		mi = 1024 * ki
		gi = 1024 * mi
	)
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "1K"},
		{5 * ki, "1K"},
		{10*ki - 1, "1K"},
		{10 * ki, "10K"},
		{10*ki + 1, "11K"},
		{10 * mi, "10M"},
		{10*mi + ki, "11M"},
		{10 * gi, "10G"},
		{10*gi + mi, "11G"},
		{100 * gi, "100G"},
	}
	for _, c := range cases {
		if got := FormatMemory(c.bytes); got != c.want {
			t.Errorf("FormatMemory(%d) = %q, want %q", c.bytes, got, c.want)
		}
	}
}
