package monitor

import (
	"time"
)

// EventMessage is a scheduler event as pushed to websocket clients
type EventMessage struct {
	Type      string                 `json:"type"`
	Event     string                 `json:"event"`
	LaneID    int                    `json:"lane_id,omitempty"`
	ItemID    string                 `json:"item_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Seq       int64                  `json:"seq"`
}

// ItemView is one pending item rendered for humans
type ItemView struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LaneView is one registered lane
type LaneView struct {
	LaneID int        `json:"lane_id"`
	Items  []ItemView `json:"items"`
}

// LanesResponse is the body served at /lanes
type LanesResponse struct {
	State       string     `json:"state"`
	Pending     int        `json:"pending"`
	CurrentLane int        `json:"current_lane,omitempty"`
	Lanes       []LaneView `json:"lanes"`
}
