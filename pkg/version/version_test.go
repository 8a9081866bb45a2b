package version

import "testing"

func TestStringPrefersTag(t *testing.T) {
	oldTag, oldCommit, oldDate := tag, commit, date
	t.Cleanup(func() { tag, commit, date = oldTag, oldCommit, oldDate })

	tag, commit, date = "v0.3.0", "abc1234", "2026-10-01"
	if got := String(); got != "v0.3.0" {
		t.Fatalf("String = %q", got)
	}
	if got := Full(); got != "v0.3.0 (abc1234) built 2026-10-01" {
		t.Fatalf("Full = %q", got)
	}

	tag = ""
	if got := String(); got != "abc1234" {
		t.Fatalf("String without tag = %q", got)
	}
	if got := Full(); got != "abc1234 built 2026-10-01" {
		t.Fatalf("Full without tag = %q", got)
	}
}
