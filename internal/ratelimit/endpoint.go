package ratelimit

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// MetadataKey is the key used to store throttling config in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig marks a Huma operation as a throttled action.
type EndpointConfig struct {
	// Action names the limited action. Together with the visitor id it forms
	// the storage key, so unrelated actions never share a budget.
	Action string

	// Disabled skips throttling for this endpoint.
	Disabled bool
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// ActionKey builds the storage key for one visitor performing action.
func ActionKey(action, visitor string) string {
	return action + ":" + visitor
}

// SplitActionKey reverses ActionKey. A key without a separator is returned as
// the action with an empty visitor.
func SplitActionKey(key string) (action, visitor string) {
	action, visitor, _ = strings.Cut(key, ":")

	return action, visitor
}
