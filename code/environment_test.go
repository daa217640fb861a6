package code

import (
	"slices"
	"testing"
)

func TestBuildEnvironment_QueryBindings(t *testing.T) {
	env := BuildEnvironment(sampleTasks(), "req", "")
	if env.Variant != VariantQuery {
		t.Errorf("Variant = %q, want query", env.Variant)
	}
	if !slices.IsSorted(env.Bindings) {
		t.Errorf("Bindings not sorted: %v", env.Bindings)
	}
	for _, name := range []string{BindTasks, BindAllTasks, BindAllTasksAlt, BindDatetime, BindTaskManager, BindRequest, BindCounter} {
		if !env.Allows(name) {
			t.Errorf("expected %s to be bound", name)
		}
	}
	for _, name := range []string{BindPlot, BindTable, "open", "os", "__import__"} {
		if env.Allows(name) {
			t.Errorf("%s should not be bound", name)
		}
	}
}

func TestBuildEnvironment_ChartBindings(t *testing.T) {
	env := BuildEnvironment(nil, "", VariantChart)
	if !env.Allows(BindPlot) || !env.Allows(BindTable) || !env.Allows(BindTasks) {
		t.Errorf("Bindings = %v", env.Bindings)
	}
}

func TestBuildEnvironment_DeepCopiesTasks(t *testing.T) {
	tasks := sampleTasks()
	tasks[0].Tags = []string{"work"}
	env := BuildEnvironment(tasks, "", VariantQuery)

	env.Tasks[0].Title = "changed"
	env.Tasks[0].Tags[0] = "changed"
	if tasks[0].Title != "Write report" || tasks[0].Tags[0] != "work" {
		t.Errorf("caller tasks mutated: %+v", tasks[0])
	}
}
