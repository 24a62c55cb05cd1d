// Package oracle abstracts the text/JSON completion capability used by every
// reasoning node in the pipeline. Implementations live under contrib/oracle.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/claimsage/claimsage/message"
)

// Client defines the interface for completion providers.
type Client interface {
	// Generate generates a response for the given conversation
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature updates the sampling temperature for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}

// Complete renders a system/user prompt pair through the client and returns
// the raw text reply. Transport failures propagate to the caller untouched.
func Complete(ctx context.Context, client Client, system, user string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("oracle client is not configured")
	}
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	}
	resp, err := client.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("oracle completion failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("oracle returned empty response")
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Pick returns the primary client when configured, otherwise the fallback.
func Pick(primary, fallback Client) Client {
	if primary != nil {
		return primary
	}
	return fallback
}
