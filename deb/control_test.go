package deb

import "testing"

func TestParseControlRoundTrip(t *testing.T) {
	src := "Package: hello\nVersion: 1.0\nArchitecture: amd64\nMaintainer: Jane Doe <jane@example.com>\nDepends: libc6 (>= 2.15), libfoo\nDescription: a friendly greeter\n extended description line\n"

	c := ParseControl(src)

	if v, _ := c.Get(FieldPackage); v != "hello" {
		t.Fatalf("Package = %q, want hello", v)
	}
	if v, _ := c.Get(FieldVersion); v != "1.0" {
		t.Fatalf("Version = %q, want 1.0", v)
	}
	if v, _ := c.Get(FieldDepends); v != "libc6 (>= 2.15), libfoo" {
		t.Fatalf("Depends = %q", v)
	}

	rendered := c.Stanza()
	reparsed := ParseControl(rendered)
	if v, _ := reparsed.Get(FieldPackage); v != "hello" {
		t.Fatalf("round-trip Package = %q, want hello", v)
	}
	if v, _ := reparsed.Get(FieldDepends); v != "libc6 (>= 2.15), libfoo" {
		t.Fatalf("round-trip Depends = %q", v)
	}
}

func TestStanzaOmitsAbsentSection(t *testing.T) {
	c := NewControl()
	c.Set(FieldPackage, "hello")
	c.Set(FieldVersion, "1.0")

	rendered := c.Stanza()
	if got, ok := ParseControl(rendered).Get(FieldSection); ok {
		t.Fatalf("expected no Section field, got %q", got)
	}
}

func TestSplitRelation(t *testing.T) {
	got := SplitRelation("libc6 (>= 2.15), libfoo, libbar")
	want := []string{"libc6 (>= 2.15)", "libfoo", "libbar"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}
	if SplitRelation("") != nil {
		t.Fatal("expected nil for empty relation string")
	}
}

func TestStanzaWithTrailer(t *testing.T) {
	c := NewControl()
	c.Set(FieldPackage, "hello")
	c.Set(FieldVersion, "1.0")

	out := StanzaWithTrailer(c, "pool/stable/main/h/hello_1.0_amd64.deb", 1024, "abc123")
	reparsed := ParseControl(out)
	if v, _ := reparsed.Get("Filename"); v != "pool/stable/main/h/hello_1.0_amd64.deb" {
		t.Fatalf("Filename = %q", v)
	}
	if v, _ := reparsed.Get("Size"); v != "1024" {
		t.Fatalf("Size = %q", v)
	}
	if v, _ := reparsed.Get("SHA256"); v != "abc123" {
		t.Fatalf("SHA256 = %q", v)
	}
}
