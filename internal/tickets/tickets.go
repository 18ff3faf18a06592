package tickets

import (
	"context"
	"time"
)

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// StatsFilter bounds the counted tickets by creation time. Zero values mean
// unbounded on that side.
type StatsFilter struct {
	From time.Time
	To   time.Time
}

func (f StatsFilter) Empty() bool {
	return f.From.IsZero() && f.To.IsZero()
}

type AgentLoad struct {
	AgentID string `json:"agentId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Count   int64  `json:"count"`
}

type Stats struct {
	Total              int64              `json:"total"`
	ByStatus           map[Status]int64   `json:"statusCount"`
	ByPriority         map[Priority]int64 `json:"priorityCount"`
	PerAgent           []AgentLoad        `json:"ticketsPerAgent"`
	AvgResolutionHours float64            `json:"avgResolutionTime"`
}

// StatsSource is the only contract the auth core has with the ticket domain;
// ticket CRUD itself lives elsewhere.
type StatsSource interface {
	Stats(ctx context.Context, f StatsFilter) (*Stats, error)
}
