package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string        // Base URL of the bridge HTTP API
	Timeout time.Duration // HTTP request timeout
	Wait    time.Duration // How long to wait for each expected state
	Level   int           // Folder level the scripted finalize screen reports
	Rate    int           // Noise rate latched by the script
	Pause   time.Duration // Delay between scripted register updates
	Zeny    int64         // Value written through POST /commands
}

// Stats holds run statistics.
type Stats struct {
	Checks    int
	Polls     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

type stateResponse struct {
	Revision  uint64 `json:"revision"`
	Connected bool   `json:"connected"`
	Latch     string `json:"latch"`
}

type valueResponse struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Number uint64 `json:"number"`
}

type derivedResponse struct {
	Revision       uint64 `json:"revision"`
	Phase          string `json:"phase"`
	EffectiveLevel *int   `json:"effectiveLevel"`
	Latch          struct {
		CapturedRate int  `json:"capturedRate"`
		HasRate      bool `json:"hasRate"`
	} `json:"latch"`
}
