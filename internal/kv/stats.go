package kv

import (
	"context"
	"strconv"
	"strings"
)

// Stats is a point-in-time snapshot of store health for the
// infrastructure health endpoint.
type Stats struct {
	Status           string  `json:"status"`
	UptimeSeconds    int64   `json:"uptime_seconds,omitempty"`
	UsedMemory       string  `json:"used_memory,omitempty"`
	ConnectedClients int64   `json:"connected_clients,omitempty"`
	TotalKeys        int64   `json:"total_keys,omitempty"`
	HitRatePercent   float64 `json:"hit_rate_percent"`
	Error            string  `json:"error,omitempty"`
}

// Stats gathers server statistics from INFO and DBSIZE. It never returns
// an error; an unreachable store is reported through the Status field.
func (c *Client) Stats(ctx context.Context) Stats {
	if !c.IsConnected(ctx) {
		return Stats{Status: "disconnected"}
	}

	raw, err := c.rdb.Info(ctx).Result()
	if err != nil {
		return Stats{Status: "error", Error: err.Error()}
	}
	info := parseInfo(raw)

	hits := infoInt(info, "keyspace_hits")
	misses := infoInt(info, "keyspace_misses")
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	totalKeys, err := c.rdb.DBSize(ctx).Result()
	if err != nil {
		return Stats{Status: "error", Error: err.Error()}
	}

	return Stats{
		Status:           "connected",
		UptimeSeconds:    infoInt(info, "uptime_in_seconds"),
		UsedMemory:       info["used_memory_human"],
		ConnectedClients: infoInt(info, "connected_clients"),
		TotalKeys:        totalKeys,
		HitRatePercent:   hitRate,
	}
}

// parseInfo splits an INFO response into key/value pairs, skipping
// section headers.
func parseInfo(raw string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

func infoInt(info map[string]string, key string) int64 {
	n, _ := strconv.ParseInt(info[key], 10, 64)
	return n
}
