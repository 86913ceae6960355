package domain

import (
	"time"
)

// EventType names an event emitted during an execution.
type EventType string

const (
	EventExecuteStart EventType = "execute_start"
	EventExecuteEnd   EventType = "execute_end"
	EventExecuteError EventType = "execute_error"
	EventStepBegin    EventType = "step_begin"
	EventStepEnd      EventType = "step_end"
	EventStepError    EventType = "step_error"
)

// TraceEntry is one recorded event of an execution.
type TraceEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	StepID    StepID    `json:"step_id,omitempty"`
	StepName  string    `json:"step_name,omitempty"`
	StepType  StepType  `json:"step_type,omitempty"`
	Port      string    `json:"port,omitempty"`
	Error     string    `json:"error,omitempty"`
}
