// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

// Package health defines the component health report served by the API's
// health endpoint. All fields are point-in-time snapshots safe to serialize
// to JSON.
package health

// State classifies a component's availability.
type State string

const (
	StateOK          State = "ok"
	StateDegraded    State = "degraded"
	StateUnavailable State = "unavailable"
)

// Component is the health of one subsystem.
type Component struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// Report is the aggregate health of the server.
type Report struct {
	Status     State       `json:"status"`
	Components []Component `json:"components,omitempty"`
}

// Aggregate combines component states into a report. The overall status is
// the worst component state.
func Aggregate(components ...Component) Report {
	status := StateOK
	for _, c := range components {
		if rank(c.State) > rank(status) {
			status = c.State
		}
	}
	return Report{Status: status, Components: components}
}

func rank(s State) int {
	switch s {
	case StateOK:
		return 0
	case StateDegraded:
		return 1
	case StateUnavailable:
		return 2
	default:
		return 1
	}
}
