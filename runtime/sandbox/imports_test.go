package sandbox

import (
	"strings"
	"testing"
)

func TestStripImports(t *testing.T) {
	all := func(string) bool { return true }
	none := func(string) bool { return false }

	tests := []struct {
		name  string
		src   string
		bound func(string) bool
		want  string
	}{
		{"bound module", "import json", all, "pass"},
		{"module alias", "import statistics as st", all, "st = statistics"},
		{"datetime module", "import datetime", all, "pass"},
		{"datetime alias", "import datetime as dt", all, "dt = datetime"},
		{"home names", "from datetime import datetime, timedelta", all, "pass"},
		{"collections", "from collections import Counter, defaultdict  # counting", all, "pass"},
		{"module members", "from statistics import mean, median", all, "mean = statistics.mean; median = statistics.median"},
		{"plotting alias", "import matplotlib.pyplot as plt", all, "pass"},
		{"indented", "    import re", all, "    pass"},
		{"unknown module", "import os", all, "import os"},
		{"unbound name", "import pandas as pd", none, "import pandas as pd"},
		{"partly unknown", "from datetime import datetime, date", all, "from datetime import datetime, date"},
		{"not an import", "important = 1", all, "important = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripImports(tt.src, tt.bound); got != tt.want {
				t.Errorf("stripImports(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestStripImports_KeepsLineCount(t *testing.T) {
	src := "import json\nfrom datetime import datetime\nresult = 1\n"
	got := stripImports(src, func(string) bool { return true })
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Errorf("line count changed: %q", got)
	}
}
