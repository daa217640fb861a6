package sandbox

import "testing"

func TestMustCache(t *testing.T) {
	if regexCache == nil {
		t.Fatal("regexCache is nil")
	}

	defer func() {
		if recover() == nil {
			t.Error("mustCache(0) did not panic")
		}
	}()
	mustCache[string, int](0)
}

func TestCompileRegex_Cached(t *testing.T) {
	first, err := compileRegex(`task-\d+`, reIgnoreCase)
	if err != nil {
		t.Fatalf("compileRegex() error = %v", err)
	}
	second, err := compileRegex(`task-\d+`, reIgnoreCase)
	if err != nil {
		t.Fatalf("compileRegex() error = %v", err)
	}
	if first != second {
		t.Error("second compile did not come from the cache")
	}
	if !first.MatchString("TASK-12") {
		t.Error("ignore-case flag not applied")
	}
	if _, err := compileRegex(`(`, 0); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
