package chatsync

import "fmt"

// ConnectionNotFoundError means the referenced SyncConnection row does not exist.
type ConnectionNotFoundError struct {
	SyncConnectionID string
}

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("chatsync: connection not found: %s", e.SyncConnectionID)
}

// ChannelLinkNotFoundError means no SyncChannelLink matched the lookup key
// used by the calling verb (either by external channel id or by hazel
// channel id, depending on direction).
type ChannelLinkNotFoundError struct {
	SyncConnectionID  string
	ExternalChannelID string
	HazelChannelID    string
}

func (e *ChannelLinkNotFoundError) Error() string {
	if e.ExternalChannelID != "" {
		return fmt.Sprintf("chatsync: channel link not found: connection=%s external_channel=%s", e.SyncConnectionID, e.ExternalChannelID)
	}
	return fmt.Sprintf("chatsync: channel link not found: connection=%s hazel_channel=%s", e.SyncConnectionID, e.HazelChannelID)
}

// MessageNotFoundError means the referenced Hazel message row does not exist.
type MessageNotFoundError struct {
	HazelMessageID string
}

func (e *MessageNotFoundError) Error() string {
	return fmt.Sprintf("chatsync: message not found: %s", e.HazelMessageID)
}

// ProviderNotSupportedError means the registry has no adapter registered
// for the requested provider tag.
type ProviderNotSupportedError struct {
	Provider Provider
}

func (e *ProviderNotSupportedError) Error() string {
	return fmt.Sprintf("chatsync: provider not supported: %s", e.Provider)
}

// ProviderConfigurationError means the adapter is registered but missing or
// holding an invalid secret (e.g. no bot token configured).
type ProviderConfigurationError struct {
	Provider Provider
	Message  string
}

func (e *ProviderConfigurationError) Error() string {
	return fmt.Sprintf("chatsync: provider configuration error (%s): %s", e.Provider, e.Message)
}

// ProviderAPIError wraps a failed provider call: a non-2xx transport
// response, a body-parse failure, or a malformed success payload.
type ProviderAPIError struct {
	Provider Provider
	Message  string
	Status   *int
	Detail   string
}

func (e *ProviderAPIError) Error() string {
	if e.Status != nil {
		return fmt.Sprintf("chatsync: provider api error (%s, status=%d): %s", e.Provider, *e.Status, e.Message)
	}
	return fmt.Sprintf("chatsync: provider api error (%s): %s", e.Provider, e.Message)
}

// NewProviderAPIStatusError builds a ProviderAPIError for a non-2xx transport response.
func NewProviderAPIStatusError(provider Provider, status int, detail string) *ProviderAPIError {
	return &ProviderAPIError{Provider: provider, Message: fmt.Sprintf("unexpected status %d", status), Status: &status, Detail: detail}
}

// NewProviderAPIParseError builds a ProviderAPIError for a body that could not be decoded.
func NewProviderAPIParseError(provider Provider, detail string) *ProviderAPIError {
	return &ProviderAPIError{Provider: provider, Message: "response body parse failure", Detail: detail}
}

// NewProviderAPIMissingIDError builds a ProviderAPIError for a 2xx response missing the id field.
func NewProviderAPIMissingIDError(provider Provider) *ProviderAPIError {
	return &ProviderAPIError{Provider: provider, Message: "response missing id"}
}
