package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_ExecuteLocal(t *testing.T) {
	service := New()
	defer service.Close(context.Background())

	output := &Output{}
	err := service.Execute(context.Background(), &Input{
		Commands: []string{"echo hello"},
	}, output)
	assert.NoError(t, err)
	assert.Equal(t, 0, output.Status)
	assert.Contains(t, output.Stdout, "hello")
	assert.Len(t, output.Commands, 1)
}

func TestService_AbortOnError(t *testing.T) {
	service := New()
	defer service.Close(context.Background())

	output := &Output{}
	err := service.Execute(context.Background(), &Input{
		Commands: []string{"false", "echo after"},
	}, output)
	assert.NoError(t, err)
	assert.NotEqual(t, 0, output.Status)
	// Execution stops after the failing command
	assert.Len(t, output.Commands, 1)
}

func TestService_ContinueOnError(t *testing.T) {
	service := New()
	defer service.Close(context.Background())

	continueOn := false
	output := &Output{}
	err := service.Execute(context.Background(), &Input{
		Commands:     []string{"false", "echo after"},
		AbortOnError: &continueOn,
	}, output)
	assert.NoError(t, err)
	assert.Len(t, output.Commands, 2)
	assert.Contains(t, output.Stdout, "after")
}
