package cron

import (
	"context"
	"testing"
)

type namedJob struct {
	name string
}

func (j *namedJob) Name() string              { return j.name }
func (j *namedJob) Run(context.Context) error { return nil }

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "impact-recalculation"}, nil)

	if err := registry.Register(&namedJob{name: "impact-recalculation"}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if err := registry.Register(&namedJob{name: "notification-cleanup"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(registry.Jobs()); got != 2 {
		t.Fatalf("expected 2 jobs, got %d", got)
	}
}

func TestRegistryJobsIsACopy(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "a"})
	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked")
	}
}

func TestRegistryOnly(t *testing.T) {
	registry := NewRegistry(&namedJob{name: "a"}, &namedJob{name: "b"}, &namedJob{name: "c"})

	narrowed, err := registry.Only("c", " a ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := narrowed.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "a" || jobs[1].Name() != "c" {
		t.Fatalf("expected registration order a,c; got %v", jobs)
	}

	if _, err := registry.Only("missing"); err == nil {
		t.Fatal("expected unknown job name to fail")
	}

	same, err := registry.Only()
	if err != nil || same != registry {
		t.Fatal("expected empty selection to return the registry unchanged")
	}
}
