package deb

import "testing"

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.1", "1.0", 1},
		{"1.0~rc1", "1.0", -1},
		{"1.0", "1.0~rc1", 1},
		{"1:1.0", "2.0", 1},
		{"0:1.0", "1.0", 0},
		{"1.0-1", "1.0-2", -1},
		{"1.0-2", "1.0-1", 1},
		{"1.0.0", "1.0", 1},
		{"1.0~~", "1.0~", -1},
		{"1.0~", "1.0", -1},
		{"2.1.5", "2.1.5+b1", -1},
	}

	for _, c := range cases {
		got := CompareVersions(c.a, c.b)
		if sign(got) != sign(c.want) {
			t.Errorf("CompareVersions(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareVersionsAntisymmetric(t *testing.T) {
	pairs := [][2]string{
		{"1.0", "1.0~rc1"},
		{"2:1.0", "1.0"},
		{"1.0-1", "1.0-10"},
	}
	for _, p := range pairs {
		fwd := CompareVersions(p[0], p[1])
		rev := CompareVersions(p[1], p[0])
		if sign(fwd) != -sign(rev) {
			t.Errorf("CompareVersions(%q,%q)=%d not antisymmetric with reverse=%d", p[0], p[1], fwd, rev)
		}
	}
}

func TestComparableKeyMonotone(t *testing.T) {
	versions := []string{"1.0~rc1", "1.0", "1.0-1", "1.0-2", "1:0.1", "2.0", "2.0+b1"}
	for i := range versions {
		for j := range versions {
			cmp := CompareVersions(versions[i], versions[j])
			ki, kj := ComparableKey(versions[i]), ComparableKey(versions[j])
			keyCmp := 0
			switch {
			case ki < kj:
				keyCmp = -1
			case ki > kj:
				keyCmp = 1
			}
			if sign(cmp) != sign(keyCmp) {
				t.Errorf("ordering mismatch for (%q,%q): cmp=%d keyCmp=%d", versions[i], versions[j], cmp, keyCmp)
			}
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
