package factory

import (
	"time"

	"github.com/mcoot/assassingame/internal/dependencies/mocks"
	"github.com/mcoot/assassingame/internal/events"
	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/auth"
	"github.com/mcoot/assassingame/internal/storage/memory"
	"github.com/mcoot/assassingame/internal/testutil"
)

// TestSecret signs tokens issued by TestApp.Token
const TestSecret = "assassin-test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	logger := testutil.NopLogger()

	authService, err := auth.New(mockClock, auth.Config{Secret: []byte(TestSecret)})
	if err != nil {
		panic(err)
	}
	rooms := events.NewRooms(logger)

	app := newWithDependencies(store, mockClock, mockRandom, authService, rooms, rooms, Config{}, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// Token issues a bearer token for subject valid for an hour of mock time
func (t *TestApp) Token(subject string) string {
	token, err := t.AuthService.Issue(subject, subject+"@example.com", time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

// Identity returns the identity Token(subject) verifies to
func (t *TestApp) Identity(subject string) model.Identity {
	return model.Identity{Subject: subject, Email: subject + "@example.com"}
}
