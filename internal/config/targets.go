package config

import (
	"fmt"
	"strconv"
	"strings"

	"distributor/internal/apperrors"
)

// Target describes one configured analyzer endpoint.
type Target struct {
	Name   string
	URL    string
	Weight float64
}

// defaultTargets mirrors the standard four-analyzer deployment.
const defaultTargets = "analyzer-1=0.4=http://analyzer-1:8001/analyze," +
	"analyzer-2=0.3=http://analyzer-2:8002/analyze," +
	"analyzer-3=0.2=http://analyzer-3:8003/analyze," +
	"analyzer-4=0.1=http://analyzer-4:8004/analyze"

// LoadTargets parses the TARGETS environment variable.
//
// Format: comma-separated "name=weight=url" entries, e.g.
//
//	TARGETS="analyzer-1=0.4=http://analyzer-1:8001/analyze,analyzer-2=0.6=http://analyzer-2:8002/analyze"
//
// Registration order follows list order.
func LoadTargets() ([]Target, error) {
	return ParseTargets(GetEnv("TARGETS", defaultTargets))
}

// ParseTargets parses a comma-separated target list.
func ParseTargets(spec string) ([]Target, error) {
	entries := strings.Split(spec, ",")
	targets := make([]Target, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 3)
		if len(parts) != 3 {
			return nil, apperrors.Config("targets", fmt.Sprintf("malformed target entry %q, want name=weight=url", entry))
		}
		weight, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, apperrors.Config("targets", fmt.Sprintf("invalid weight %q for target %q", parts[1], parts[0]))
		}
		if weight < 0 {
			return nil, apperrors.Config("targets", fmt.Sprintf("negative weight for target %q", parts[0]))
		}
		targets = append(targets, Target{
			Name:   parts[0],
			URL:    parts[2],
			Weight: weight,
		})
	}
	if len(targets) == 0 {
		return nil, apperrors.Config("targets", "no targets configured")
	}
	return targets, nil
}
