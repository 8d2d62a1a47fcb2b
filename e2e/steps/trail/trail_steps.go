package trail

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/gofrs/uuid"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (interface{}, error)
	Fingerprint(name string) string
	UseClient(name string) error
}

// RegisterSteps registers trail and caller registration step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &trailSteps{tc: tc, subjects: map[string]string{}}

	ctx.Step(`^a fresh subject "([^"]*)"$`, steps.freshSubject)
	ctx.Step(`^I record action "([^"]*)" for subject "([^"]*)"$`, steps.recordAction)
	ctx.Step(`^I verify action "([^"]*)" for subject "([^"]*)"$`, steps.verifyAction)
	ctx.Step(`^I list logs for subject "([^"]*)"$`, steps.listBySubject)
	ctx.Step(`^the controller registers client "([^"]*)"$`, steps.controllerRegisters)
	ctx.Step(`^the response should contain (\d+) logs?$`, steps.logCount)
}

type trailSteps struct {
	tc TestContext
	// subjects maps scenario aliases to random v4 IDs so reruns against a
	// persistent store never collide on digests.
	subjects map[string]string
}

func (s *trailSteps) freshSubject(ctx context.Context, alias string) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	s.subjects[alias] = id.String()
	return nil
}

func (s *trailSteps) subject(alias string) (string, error) {
	id, ok := s.subjects[alias]
	if !ok {
		return "", fmt.Errorf("subject %q was not declared", alias)
	}
	return id, nil
}

func (s *trailSteps) recordAction(ctx context.Context, action, alias string) error {
	id, err := s.subject(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/api/logs", map[string]interface{}{
		"uuid":   id,
		"action": action,
		"data":   map[string]string{"source": "e2e"},
	})
}

func (s *trailSteps) verifyAction(ctx context.Context, action, alias string) error {
	id, err := s.subject(alias)
	if err != nil {
		return err
	}
	return s.tc.POST("/api/logs/verify", map[string]interface{}{"uuid": id, "action": action})
}

func (s *trailSteps) listBySubject(ctx context.Context, alias string) error {
	id, err := s.subject(alias)
	if err != nil {
		return err
	}
	return s.tc.GET("/api/logs/uuid/"+id, nil)
}

// controllerRegisters registers a client by fingerprint, acting as the
// controller for this one request only.
func (s *trailSteps) controllerRegisters(ctx context.Context, name string) error {
	fp := s.tc.Fingerprint(name)
	if fp == "" {
		return fmt.Errorf("unknown client %q", name)
	}
	if err := s.tc.UseClient("controller"); err != nil {
		return err
	}
	return s.tc.POST("/api/services", map[string]interface{}{"serviceId": fp})
}

func (s *trailSteps) logCount(ctx context.Context, expected int) error {
	count, err := s.tc.GetResponseField("data.count")
	if err != nil {
		return err
	}
	if got, ok := count.(float64); !ok || int(got) != expected {
		return fmt.Errorf("expected %d logs, got %v", expected, count)
	}
	return nil
}
