// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "runtime/debug"

// EventType is the event_type of a telemetry event.
type EventType string

const (
	EventTypeInfo  EventType = "info"
	EventTypeError EventType = "error"
)

// maxStackTraceLen is the maximum number of characters of stack trace sent.
const maxStackTraceLen = 10000

// Telemetry event names.
const (
	eventDeviceCodeFailure         = "device_flow_device_code_failure"
	eventDeviceTokenExpired        = "device_flow_token_expired"
	eventDeviceTokenFailure        = "device_flow_token_failure"
	eventDeviceVerificationFailure = "device_flow_token_verification_failure"
	eventRefreshFailure            = "refresh_flow_refresh_failure"
)

// TelemetryEvent is a diagnostic event reported to the OpenPass telemetry
// endpoint.
type TelemetryEvent struct {
	ClientID   string    `json:"client_id"`
	Name       string    `json:"name"`
	Message    string    `json:"message"`
	EventType  EventType `json:"event_type"`
	StackTrace string    `json:"stack_trace,omitempty"`
}

// NewInfoEvent creates an info event.
func NewInfoEvent(clientID, name, message string) TelemetryEvent {
	return TelemetryEvent{
		ClientID:  clientID,
		Name:      name,
		Message:   message,
		EventType: EventTypeInfo,
	}
}

// NewErrorEvent creates an error event. The stack trace is optional and is
// truncated to 10000 characters.
func NewErrorEvent(clientID, name, message, stackTrace string) TelemetryEvent {
	return TelemetryEvent{
		ClientID:   clientID,
		Name:       name,
		Message:    message,
		EventType:  EventTypeError,
		StackTrace: truncate(stackTrace, maxStackTraceLen),
	}
}

func currentStack() string {
	return string(debug.Stack())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
