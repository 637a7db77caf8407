package domain

import "time"

// FeedStatus is the per-feed health record exposed to the rendering layer.
type FeedStatus struct {
	FeedID          string    `json:"feedId"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	HTTPStatus      int       `json:"httpStatus"`
	ErrorKind       ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	FetchedAt       time.Time `json:"fetchedAt"`
	Stale           bool      `json:"stale"`
	Count           int       `json:"count"`
	Critical        bool      `json:"critical"`
	ServedFromCache bool      `json:"servedFromCache,omitempty"`
	FallbackUsed    string    `json:"fallbackUsed,omitempty"`
}

// Errored reports whether the last fetch ended in an error state.
func (s FeedStatus) Errored() bool {
	return s.ErrorKind != ErrorNone
}

// Message returns a human-readable reason, preferring the upstream text.
func (s FeedStatus) Message() string {
	if s.ErrorMessage != "" {
		return s.ErrorMessage
	}

	return string(s.ErrorKind)
}

// HealthState is the aggregate pipeline health.
type HealthState string

// Health states.
const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
)

// HealthReport summarizes feed health. Only critical feeds flip State.
type HealthReport struct {
	State          HealthState `json:"state"`
	CriticalErrors []string    `json:"criticalErrors,omitempty"`
	ErroredFeeds   int         `json:"erroredFeeds"`
	StaleFeeds     int         `json:"staleFeeds"`
	TotalFeeds     int         `json:"totalFeeds"`
}

// BuildHealth computes the aggregate health from statuses.
func BuildHealth(statuses []FeedStatus) HealthReport {
	report := HealthReport{State: HealthHealthy, TotalFeeds: len(statuses)}

	for _, s := range statuses {
		if s.Stale {
			report.StaleFeeds++
		}

		if !s.Errored() {
			continue
		}

		report.ErroredFeeds++

		if s.Critical {
			report.CriticalErrors = append(report.CriticalErrors, s.FeedID)
		}
	}

	if len(report.CriticalErrors) > 0 {
		report.State = HealthDegraded
	}

	return report
}
