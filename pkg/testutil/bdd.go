package testutil

import "testing"

// Given, When, Then and And name the steps of a lifecycle test as subtests.
// Steps share state through the enclosing test, so once one fails the later
// steps are skipped rather than run against a half-built fixture.
func Given(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Given", desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "When", desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Then", desc, fn)
}

func And(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "And", desc, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	name := keyword + " " + desc
	if t.Failed() {
		t.Run(name, func(t *testing.T) {
			t.Skip("skipped: an earlier step failed")
		})
		return false
	}
	return t.Run(name, fn)
}
