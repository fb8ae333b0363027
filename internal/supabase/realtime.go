package supabase

import (
	"fmt"

	"github.com/google/uuid"
)

// RealtimeClient publishes measurement session lifecycle events so polling
// clients can subscribe instead of hammering the status endpoint.
type RealtimeClient struct {
	client *Client
}

func NewRealtimeClient(client *Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Supabase Go client has no direct Realtime publish; the session
	// row updates trigger Realtime automatically. This is the hook for
	// explicit event publishing via the Realtime REST API if needed.
	return nil
}

func (r *RealtimeClient) PublishSessionEvent(sessionID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("measurement-session:%s", sessionID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads
func PhotoProcessedPayload(sessionID uuid.UUID, photoNumber int) map[string]interface{} {
	return map[string]interface{}{
		"session_id":   sessionID.String(),
		"status":       "capturing",
		"photo_number": photoNumber,
	}
}

func RetakeRequiredPayload(sessionID uuid.UUID, photoNumber int, reason string) map[string]interface{} {
	return map[string]interface{}{
		"session_id":   sessionID.String(),
		"status":       "capturing",
		"photo_number": photoNumber,
		"reason":       reason,
	}
}

func SessionCompletedPayload(sessionID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID.String(),
		"status":     "complete",
	}
}

func SessionFailedPayload(sessionID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID.String(),
		"status":     "failed",
		"error":      errorMsg,
	}
}
