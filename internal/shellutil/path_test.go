package shellutil

import "testing"

func TestComponents(t *testing.T) {
	cases := map[string][]string{
		"/":    {},
		"/a/b": {"a", "b"},
		"a//b": {"a", "b"},
	}
	for p, want := range cases {
		got := Components(p)
		if len(got) != len(want) {
			t.Errorf("Components(%q) = %v, want %v", p, got, want)
			continue
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("Components(%q) = %v, want %v", p, got, want)
			}
		}
	}
}

func TestJoin(t *testing.T) {
	cases := []struct {
		base, p, want string
	}{
		{"/", "a", "/a"},
		{"/a", "b", "/a/b"},
		{"/a/b", "..", "/a"},
		{"/a/b", "../..", "/"},
		{"/a", "/x/y", "/x/y"},
		{"/a", ".", "/a"},
		{"/a", "", "/a"},
		{"/", "..", "/"},
	}
	for _, c := range cases {
		if got := Join(c.base, c.p); got != c.want {
			t.Errorf("Join(%q, %q) = %q, want %q", c.base, c.p, got, c.want)
		}
	}
}

func TestSplitParentBase(t *testing.T) {
	cases := []struct {
		path, parent, base string
	}{
		{"/a", "/", "a"},
		{"/a/b", "/a", "b"},
		{"a", ".", "a"},
	}
	for _, c := range cases {
		parent, base := SplitParentBase(c.path)
		if parent != c.parent || base != c.base {
			t.Errorf("SplitParentBase(%q) = (%q, %q), want (%q, %q)", c.path, parent, base, c.parent, c.base)
		}
	}
}
