package conv

import "testing"

func TestAppendUint(t *testing.T) {
	cases := []struct {
		n    uint64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{115200, "115200"},
		{18446744073709551615, "18446744073709551615"},
	}
	for _, c := range cases {
		if got := string(AppendUint(nil, c.n)); got != c.want {
			t.Errorf("AppendUint(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestAppendIntNegative(t *testing.T) {
	if got := string(AppendInt([]byte("t="), -503)); got != "t=-503" {
		t.Fatalf("got %q", got)
	}
}
