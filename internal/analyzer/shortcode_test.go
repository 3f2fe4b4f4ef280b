package analyzer

import "testing"

func TestStripShortcodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no brackets", "plain text", "plain text"},
		{"enclosing", "a [note]hidden[/note] b", "a  b"},
		{"enclosing with attrs", `a [box class="x"]hidden[/box] b`, "a  b"},
		{"self closing", `a [gallery ids="1,2" /] b`, "a  b"},
		{"standalone without closer", "a [embed] b", "a  b"},
		{"stray closer", "a [/embed] b", "a  b"},
		{"escaped", "a [[embed]] b", "a [embed] b"},
		{"not a shortcode", "array[0] and [ spaced ]", "array[0] and [ spaced ]"},
		{"markup inside brackets", "[<b>x</b>]", "[<b>x</b>]"},
		{"unterminated", "a [embed b", "a [embed b"},
		{"two enclosures", "[a]x[/a] keep [b]y[/b]", " keep "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stripShortcodes(tt.in); got != tt.want {
				t.Errorf("stripShortcodes(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
