package pipeline

import (
	"maps"
	"time"
)

// Summary describes one run, for logs and the /status endpoint.
type Summary struct {
	RunID    string    `json:"run_id"`
	Command  string    `json:"command"`
	Variant  string    `json:"variant,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	WeatherRows int `json:"weather_rows"`
	FlightRows  int `json:"flight_rows"`
	MergedRows  int `json:"merged_rows"`
	Unmatched   int `json:"unmatched"`
	Window      int `json:"window,omitempty"`

	// Dropped counts rows removed during cleanup, keyed by dataset then reason.
	Dropped map[string]map[string]int `json:"dropped,omitempty"`
	Outputs []string                  `json:"outputs,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func (s *Summary) drop(dataset, reason string, n int) {
	if n == 0 {
		return
	}
	if s.Dropped == nil {
		s.Dropped = make(map[string]map[string]int)
	}
	if s.Dropped[dataset] == nil {
		s.Dropped[dataset] = make(map[string]int)
	}
	s.Dropped[dataset][reason] += n
}

func (s Summary) clone() Summary {
	c := s
	if s.Dropped != nil {
		c.Dropped = make(map[string]map[string]int, len(s.Dropped))
		for k, v := range s.Dropped {
			c.Dropped[k] = maps.Clone(v)
		}
	}
	c.Outputs = append([]string(nil), s.Outputs...)
	return c
}
