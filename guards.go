package signup

import (
	"context"
)

// RootPath is where guards send rejected navigations.
const RootPath = "/"

// SessionReader is the part of the session store guards consult.
type SessionReader interface {
	IsLoggedIn() bool
}

// ScenarioMarker is the part of the scenario tracker guards update.
type ScenarioMarker interface {
	MarkScenarioAsDone(ctx context.Context, s Scenario) error
}

// Guard runs before a navigation completes. It returns true to allow it.
// When it returns false it has called nav.NavigateTo exactly once.
type Guard func(ctx context.Context, nav Navigator) bool

// RequireAuthenticated lets logged in sessions through and sends everyone
// else to the root path.
func RequireAuthenticated(sessions SessionReader) Guard {
	return func(ctx context.Context, nav Navigator) bool {
		if sessions.IsLoggedIn() {
			return true
		}
		nav.NavigateTo(RootPath)
		return false
	}
}

// RequireAnonymous lets logged out sessions through. A logged in session
// marks the signUpPageInaccessible scenario and is sent to the root path.
func RequireAnonymous(sessions SessionReader, scenarios ScenarioMarker, logger Logger) Guard {
	logger = normalizeLogger(logger)

	return func(ctx context.Context, nav Navigator) bool {
		if !sessions.IsLoggedIn() {
			return true
		}

		if scenarios != nil {
			if err := scenarios.MarkScenarioAsDone(ctx, ScenarioSignUpPageInaccessible); err != nil {
				logger.Error("failed to mark scenario", "scenario", ScenarioSignUpPageInaccessible, "error", err)
			}
		}

		nav.NavigateTo(RootPath)
		return false
	}
}
