package e2e

import (
	"github.com/cucumber/godog"

	"certtrail/e2e/steps/common"
	"certtrail/e2e/steps/trail"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Client selection, raw requests, response assertions
	common.RegisterSteps(ctx, tc)

	// Trail writes, verification, queries and caller registration
	trail.RegisterSteps(ctx, tc)
}
