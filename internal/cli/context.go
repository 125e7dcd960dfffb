// Package cli provides the command-line interface for the dommap application.
package cli

import (
	"context"

	"github.com/law-makers/dommap/internal/app"
	"github.com/spf13/cobra"
)

// ctxKey is used for storing app context in cobra commands
type ctxKey string

const appKey ctxKey = "app"

// SetApp stores the Application in the context of the executing command.
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey, a))
}

// GetAppFromCmd retrieves the Application set by SetApp, or nil.
func GetAppFromCmd(cmd *cobra.Command) *app.Application {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	a, _ := cmd.Context().Value(appKey).(*app.Application)
	return a
}

// mustApp returns the command's Application or an error naming the command.
func mustApp(cmd *cobra.Command) (*app.Application, error) {
	if a := GetAppFromCmd(cmd); a != nil {
		return a, nil
	}
	return nil, errNoApp(cmd.CommandPath())
}
