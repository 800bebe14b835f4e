package main

import (
	"testing"

	"inkwell/internal/jobs"
	"inkwell/internal/logging"
	"inkwell/internal/stage"
	"inkwell/internal/testsupport"
)

type fakeRegistrar struct {
	handlers []stage.Handler
}

func (f *fakeRegistrar) Register(handler stage.Handler) {
	f.handlers = append(f.handlers, handler)
}

func TestRegisterStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	registrar := &fakeRegistrar{}
	registerStages(registrar, cfg, logging.NewNop())

	expected := jobs.Stages()
	if len(registrar.handlers) != len(expected) {
		t.Fatalf("expected %d stages registered, got %d", len(expected), len(registrar.handlers))
	}
	for i, handler := range registrar.handlers {
		if handler == nil {
			t.Fatalf("stage %d is nil", i)
		}
		if handler.Stage() != expected[i] {
			t.Errorf("stage %d: expected %s, got %s", i, expected[i], handler.Stage())
		}
	}
}

func TestRegisterStagesNilRegistrar(t *testing.T) {
	registerStages(nil, testsupport.NewConfig(t), logging.NewNop())
	registrar := &fakeRegistrar{}
	registerStages(registrar, nil, logging.NewNop())
	if len(registrar.handlers) != 0 {
		t.Fatalf("expected no registrations without config, got %d", len(registrar.handlers))
	}
}
