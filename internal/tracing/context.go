package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// SessionKeyKey is the context key for the interactive session key
	SessionKeyKey ContextKey = "session_key"
	// LaneIDKey is the context key for the lane executing a work item
	LaneIDKey ContextKey = "lane_id"
	// ItemIDKey is the context key for the work item ID
	ItemIDKey ContextKey = "item_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID    string
	SessionKey string
	LaneID     int
	ItemID     string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionKey adds a session key to the context
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, SessionKeyKey, sessionKey)
}

// WithLaneID adds a lane ID to the context
func WithLaneID(ctx context.Context, laneID int) context.Context {
	return context.WithValue(ctx, LaneIDKey, laneID)
}

// WithItemID adds a work item ID to the context
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ItemIDKey, itemID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetSessionKey retrieves the session key from the context
func GetSessionKey(ctx context.Context) string {
	if sessionKey, ok := ctx.Value(SessionKeyKey).(string); ok {
		return sessionKey
	}
	return ""
}

// GetLaneID retrieves the lane ID from the context. Lane IDs start at 1, so 0 means unset.
func GetLaneID(ctx context.Context) int {
	if laneID, ok := ctx.Value(LaneIDKey).(int); ok {
		return laneID
	}
	return 0
}

// GetItemID retrieves the work item ID from the context
func GetItemID(ctx context.Context) string {
	if itemID, ok := ctx.Value(ItemIDKey).(string); ok {
		return itemID
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:    GetTraceID(ctx),
		SessionKey: GetSessionKey(ctx),
		LaneID:     GetLaneID(ctx),
		ItemID:     GetItemID(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.SessionKey != "" {
		ctx = WithSessionKey(ctx, tc.SessionKey)
	}
	if tc.LaneID != 0 {
		ctx = WithLaneID(ctx, tc.LaneID)
	}
	if tc.ItemID != "" {
		ctx = WithItemID(ctx, tc.ItemID)
	}
	return ctx
}

// NewRequestContext creates a new context for a submission with a new trace ID
func NewRequestContext(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}
