package deb

import "strings"

// CompareVersions compares two Debian package version strings and returns
// -1, 0, or 1 following the same ordering dpkg uses: split into
// epoch:upstream-revision, compare the epoch numerically, then the upstream
// and revision parts with the alternating-digit/non-digit algorithm described
// in Debian Policy §5.6.12, where '~' sorts before everything, including the
// empty string.
func CompareVersions(a, b string) int {
	ea, ua, ra := splitFullVersion(a)
	eb, ub, rb := splitFullVersion(b)

	if c := compareEpoch(ea, eb); c != 0 {
		return c
	}
	if c := compareComponent(ua, ub); c != 0 {
		return c
	}
	return compareComponent(ra, rb)
}

// ComparableKey returns a byte string for v such that the lexical ordering of
// ComparableKey outputs matches CompareVersions ordering. It is meant for use
// as a sort key (e.g. in a SQL ORDER BY over a TEXT column, or in-memory
// sort.Slice), not for display.
func ComparableKey(v string) string {
	epoch, upstream, revision := splitFullVersion(v)
	var b strings.Builder
	b.WriteString(epochKey(epoch))
	b.WriteString(componentKey(upstream))
	b.WriteString(componentKey(revision))
	return b.String()
}

// splitFullVersion splits "[epoch:]upstream[-revision]" into its three parts.
// epoch defaults to "0" and revision defaults to "0" when absent, matching
// dpkg's own treatment of missing components.
func splitFullVersion(v string) (epoch, upstream, revision string) {
	epoch = "0"
	if i := strings.IndexByte(v, ':'); i >= 0 {
		epoch = v[:i]
		v = v[i+1:]
	}
	revision = "0"
	if i := strings.LastIndexByte(v, '-'); i >= 0 {
		upstream = v[:i]
		revision = v[i+1:]
	} else {
		upstream = v
	}
	return epoch, upstream, revision
}

func compareEpoch(a, b string) int {
	na, oka := parseUint(a)
	nb, okb := parseUint(b)
	if oka && okb {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func parseUint(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var n uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + uint64(r-'0')
	}
	return n, true
}

// compareComponent implements dpkg's version-part comparison: the string is
// split into alternating non-digit and digit runs, starting with a (possibly
// empty) non-digit run. Non-digit runs compare lexically, with the special
// rule that '~' sorts lower than anything, including the end of a run. Digit
// runs compare numerically, treating a missing run as 0.
func compareComponent(a, b string) int {
	for len(a) > 0 || len(b) > 0 {
		ra, resta := takeNonDigits(a)
		rb, restb := takeNonDigits(b)
		if c := compareNonDigitRun(ra, rb); c != 0 {
			return c
		}
		a, b = resta, restb

		da, resta2 := takeDigits(a)
		db, restb2 := takeDigits(b)
		if c := compareDigitRun(da, db); c != 0 {
			return c
		}
		a, b = resta2, restb2
	}
	return 0
}

func takeNonDigits(s string) (run, rest string) {
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	return s[:i], s[i:]
}

func takeDigits(s string) (run, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// compareNonDigitRun compares two non-digit runs character by character,
// using the tilde-aware ordering: '~' < end-of-string < anything else, and
// among non-tilde characters, ordinary byte order.
func compareNonDigitRun(a, b string) int {
	i := 0
	for i < len(a) || i < len(b) {
		var ca, cb int
		if i < len(a) {
			ca = charOrder(a[i])
		} else {
			ca = charOrder(0)
		}
		if i < len(b) {
			cb = charOrder(b[i])
		} else {
			cb = charOrder(0)
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
	}
	return 0
}

// charOrder maps a byte to its sort rank: '~' is lowest, then end-of-string
// (represented by the zero byte), then letters before everything else, then
// the rest of the byte range in natural order.
func charOrder(c byte) int {
	switch {
	case c == '~':
		return -1
	case c == 0:
		return 0
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return int(c)
	default:
		return int(c) + 256
	}
}

func compareDigitRun(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// epochKey renders an epoch as a fixed-width numeric key so that lexical
// comparison matches numeric comparison for any epoch that fits in 20 digits.
func epochKey(s string) string {
	n, ok := parseUint(s)
	if !ok {
		return s
	}
	return padUint(n, 20)
}

func padUint(n uint64, width int) string {
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	for len(digits) < width {
		digits = append([]byte{'0'}, digits...)
	}
	return string(digits)
}

// componentKey renders an upstream or revision version part as a key whose
// lexical order matches compareComponent's order. Each non-digit run is
// emitted byte by byte through encodeByte and closed with runEnd; each digit
// run is emitted as a fixed-width zero-padded decimal so numeric order matches
// lexical order. A final runEnd terminates the whole component, so a version
// that is a proper prefix of another still compares correctly: the terminator
// (0x02) sorts above an encoded '~' (0x01) but below every other character,
// which is exactly the tilde rule.
func componentKey(s string) string {
	var b strings.Builder
	for len(s) > 0 {
		nd, rest := takeNonDigits(s)
		for i := 0; i < len(nd); i++ {
			b.WriteByte(encodeByte(nd[i]))
		}
		b.WriteByte(runEnd)
		s = rest

		d, rest2 := takeDigits(s)
		b.WriteString(padUint(mustParseUint(strings.TrimLeft(d, "0")), 20))
		s = rest2
	}
	b.WriteByte(runEnd)
	return b.String()
}

// runEnd terminates a non-digit run and the component itself. It must sort
// above the '~' encoding and below every other encoded character.
const runEnd = 0x02

// encodeByte maps a version character to a byte whose natural order matches
// charOrder: '~' lowest, then runEnd, then letters in ASCII order, then every
// other character shifted above the letter range.
func encodeByte(c byte) byte {
	switch {
	case c == '~':
		return 0x01
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return c
	default:
		return c + 0x80
	}
}

func mustParseUint(s string) uint64 {
	n, _ := parseUint(s)
	return n
}
