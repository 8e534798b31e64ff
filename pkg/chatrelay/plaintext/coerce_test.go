package plaintext

import "testing"

func TestCoerceStripsMarkdown(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced code block keeps inner content",
			in:   "before\n```go\nfmt.Println(1)\n```\nafter",
			want: "before\nfmt.Println(1)\n\nafter",
		},
		{
			name: "markdown link",
			in:   "see [the docs](https://example.com/docs) for more",
			want: "see the docs (https://example.com/docs) for more",
		},
		{
			name: "inline code",
			in:   "run `go build` first",
			want: "run go build first",
		},
		{
			name: "heading",
			in:   "## Section title\nbody",
			want: "Section title\nbody",
		},
		{
			name: "bullet markers",
			in:   "- one\n- two\n* three",
			want: "one\ntwo\nthree",
		},
		{
			name: "blockquote marker",
			in:   "> quoted line",
			want: "quoted line",
		},
		{
			name: "bold and italic wrappers",
			in:   "this is **bold** and _italic_ and *also italic* and __also bold__",
			want: "this is bold and italic and also italic and also bold",
		},
		{
			name: "trailing asterisks",
			in:   "done* ok",
			want: "done ok",
		},
		{
			name: "numbered list split at one and consecutive",
			in:   "1. first 2. second 3. third",
			want: "first\nsecond\nthird",
		},
		{
			name: "numbered list not starting at one is left alone",
			in:   "I have 2. 3 cats",
			want: "I have 2. 3 cats",
		},
		{
			name: "collapses blank lines and whitespace runs",
			in:   "one\n\n\n\ntwo   three",
			want: "one\n\ntwo three",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Coerce(c.in); got != c.want {
				t.Errorf("Coerce(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestCoerceIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain sentence with no markup",
		"## Heading\n- bullet one\n- bullet two\n\n**bold** and _italic_ text with `code` and a [link](https://example.com).",
		"1. alpha 2. beta 3. gamma",
		"> quoted\nfenced:\n```\nraw text\n```",
		"trailing star* at end of line*",
	}

	for _, in := range inputs {
		once := Coerce(in)
		twice := Coerce(once)
		if once != twice {
			t.Errorf("Coerce is not idempotent for %q: Coerce(x)=%q, Coerce(Coerce(x))=%q", in, once, twice)
		}
	}
}
