package app

import (
	"testing"

	_ "github.com/dropzone-hq/dropzone/testing"
)

func TestRefreshTestMode(t *testing.T) {
	t.Cleanup(RefreshTestMode)

	if !InTestMode() {
		t.Fatal("guard package should have enabled test mode")
	}

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	if InTestMode() {
		t.Fatal("expected test mode off after clearing the flag")
	}

	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	if !InTestMode() {
		t.Fatal("expected test mode back on after refresh")
	}
}
