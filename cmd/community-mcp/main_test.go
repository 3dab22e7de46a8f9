package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/rich7420/community-ai-agent-sub001/internal/app"
	"github.com/rich7420/community-ai-agent-sub001/internal/qa"
	"github.com/rich7420/community-ai-agent-sub001/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolDependenciesWithoutAssistant(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := toolDependencies(&app.App{}, logger)

	// A typed nil pointer stored in an interface would not compare equal to nil.
	assert.True(t, deps.Assistant == nil)
	assert.True(t, deps.Answers == nil)
	assert.NotNil(t, deps.Health)

	result, _, err := tools.NewAskHandler(deps)(context.Background(), nil, tools.AskInput{Question: "hi"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestToolDependenciesWithAssistant(t *testing.T) {
	a := &app.App{Assistant: qa.New(nil, nil, qa.Options{}, nil, nil)}
	deps := toolDependencies(a, nil)

	assert.Same(t, a.Assistant, deps.Assistant)
	assert.Same(t, a.Assistant, deps.Answers)
}
