// Package health aggregates auxiliary store health into one report for
// operators. Each component is probed independently so a down store
// never masks the state of the others.
package health

import (
	"context"

	"github.com/squadnav-ai/conversational-backend/internal/kv"
	"github.com/squadnav-ai/conversational-backend/internal/search"
)

// KVStore reports key-value store statistics.
type KVStore interface {
	Stats(ctx context.Context) kv.Stats
}

// SearchStore reports search index statistics.
type SearchStore interface {
	Stats(ctx context.Context) search.Stats
}

// Conn reports broker connectivity.
type Conn interface {
	IsConnected() bool
}

// DB reports primary store connectivity.
type DB interface {
	Ping(ctx context.Context) error
}

// ComponentStatus is the health of a single yes/no component.
type ComponentStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Report is the aggregate infrastructure health snapshot.
type Report struct {
	Status        string          `json:"status"`
	Redis         kv.Stats        `json:"redis"`
	Elasticsearch search.Stats    `json:"elasticsearch"`
	NATS          ComponentStatus `json:"nats"`
	Postgres      ComponentStatus `json:"postgres"`
}

// Checker gathers component health.
type Checker struct {
	kv     KVStore
	search SearchStore
	nats   Conn
	db     DB
}

// New creates a Checker over the four infrastructure components.
func New(kvStore KVStore, searchStore SearchStore, natsConn Conn, db DB) *Checker {
	return &Checker{
		kv:     kvStore,
		search: searchStore,
		nats:   natsConn,
		db:     db,
	}
}

// Check probes every component and reports overall status "healthy"
// only when all components are reachable, "degraded" otherwise. The
// report itself always succeeds; degradation shows up in the component
// fields.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Redis:         c.kv.Stats(ctx),
		Elasticsearch: c.search.Stats(ctx),
	}

	report.NATS.Connected = c.nats.IsConnected()
	if !report.NATS.Connected {
		report.NATS.Error = "not connected"
	}

	if err := c.db.Ping(ctx); err != nil {
		report.Postgres = ComponentStatus{Connected: false, Error: err.Error()}
	} else {
		report.Postgres.Connected = true
	}

	report.Status = "healthy"
	if report.Redis.Status != "connected" ||
		!report.Elasticsearch.Connected ||
		!report.NATS.Connected ||
		!report.Postgres.Connected {
		report.Status = "degraded"
	}
	return report
}
