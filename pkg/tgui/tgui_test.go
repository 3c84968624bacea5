package tgui

import "testing"

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		action, payload string
	}{
		{"menu", ""},
		{"cancel", "42"},
		{"target", "-1001234567890"},
	}
	for _, tc := range cases {
		a, p := SplitData(Data(tc.action, tc.payload))
		if a != tc.action || p != tc.payload {
			t.Errorf("roundtrip(%q, %q) = %q, %q", tc.action, tc.payload, a, p)
		}
	}
}

func TestSplitDataStripsUniquePrefix(t *testing.T) {
	t.Parallel()

	a, p := SplitData("\fcancel:7")
	if a != "cancel" || p != "7" {
		t.Errorf("got %q, %q", a, p)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel…"},
		{"xin chào nhé", 8, "xin chào…"},
		{"abc", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Errorf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestEsc(t *testing.T) {
	t.Parallel()

	if got := Esc("<b> & </b>"); got == "<b> & </b>" {
		t.Errorf("Esc did not escape: %q", got)
	}
	if got := B("a<b"); got != "<b>a&lt;b</b>" {
		t.Errorf("B = %q", got)
	}
}
