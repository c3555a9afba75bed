package domain

// VersionCheck selects between a compare-and-swap write and an unconditional
// one. The zero value is Unchecked; call sites should still spell it out with
// Unchecked() so the unsafe path stays visible.
type VersionCheck struct {
	expected int
	checked  bool
}

// Checked requires the stored version to equal expected; the write sets
// version to expected+1.
func Checked(expected int) VersionCheck {
	return VersionCheck{expected: expected, checked: true}
}

// Unchecked writes regardless of the stored version and sets version+1.
// Reserved for system writes such as compensations and restores.
func Unchecked() VersionCheck {
	return VersionCheck{}
}

// Expected returns the expected version and whether a check applies.
func (c VersionCheck) Expected() (int, bool) {
	return c.expected, c.checked
}

func (c VersionCheck) IsChecked() bool { return c.checked }
