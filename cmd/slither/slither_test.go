package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildApp(t *testing.T) {
	app := buildApp()

	names := []string{}
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{"version", "service", "token"}, names)
	service := app.Command("service")
	if assert.NotNil(t, service) {
		assert.Len(t, service.Subcommands, 1)
		assert.Equal(t, "web", service.Subcommands[0].Name)
	}
}
