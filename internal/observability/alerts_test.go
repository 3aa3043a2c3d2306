package observability_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dropzone-hq/dropzone/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func loadAlertGroup(t *testing.T, name string) alertGroup {
	t.Helper()
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "dropzone.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alert file: %v", err)
	}
	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("unmarshal alert file: %v", err)
	}
	for _, group := range spec.Groups {
		if group.Name == name {
			return group
		}
	}
	t.Fatalf("alert group %q missing", name)
	return alertGroup{}
}

// Each rule has to watch a series this codebase actually exports, carry a
// severity, and point at its runbook section.
func TestDropzoneAlertRules(t *testing.T) {
	group := loadAlertGroup(t, "dropzone")

	expected := map[string]struct {
		severity string
		series   string
		runbook  string
	}{
		"HighErrorRate":    {severity: "critical", series: "dropzone_http_requests_total", runbook: "docs/runbook-ops.md#high-error-rate"},
		"HighLatency":      {severity: "warning", series: "dropzone_http_request_duration_seconds_bucket", runbook: "docs/runbook-ops.md#high-latency"},
		"JobFailures":      {severity: "warning", series: "dropzone_jobs_failures_total", runbook: "docs/runbook-ops.md#job-failures"},
		"LoadSweepStalled": {severity: "critical", series: "dropzone_jobs_total", runbook: "docs/runbook-ops.md#load-sweep-stalled"},
	}

	byName := make(map[string]alertRule, len(group.Rules))
	for _, rule := range group.Rules {
		if _, ok := expected[rule.Alert]; !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		byName[rule.Alert] = rule
	}

	for name, want := range expected {
		rule, ok := byName[name]
		if !ok {
			t.Fatalf("rule %s missing", name)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", name, rule.Labels["severity"])
		}
		if !strings.Contains(rule.Expr, want.series) {
			t.Fatalf("rule %s does not reference %s: %s", name, want.series, rule.Expr)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", name)
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", name, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", name)
		}
	}
}

// The stall alert selects on the task name the worker registers. If the
// name ever changes the alert would silently watch an empty series.
func TestLoadSweepAlertTracksTaskName(t *testing.T) {
	group := loadAlertGroup(t, "dropzone")
	for _, rule := range group.Rules {
		if rule.Alert != "LoadSweepStalled" {
			continue
		}
		selector := `job="` + jobs.TaskLoadStatusSweep + `"`
		if !strings.Contains(rule.Expr, selector) {
			t.Fatalf("LoadSweepStalled expr must select %s: %s", selector, rule.Expr)
		}
		return
	}
	t.Fatal("LoadSweepStalled rule missing")
}
