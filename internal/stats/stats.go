// Package stats turns session records into flight-time statistics. Every
// function here is pure; callers decide which sessions are in scope.
package stats

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/safespacehub/plane-tracker-site/internal/models"
)

// NotApplicable is how an undefined duration is rendered.
const NotApplicable = "N/A"

// Duration is a number of seconds that may be undefined, e.g. the average of
// zero closed sessions.
type Duration struct {
	Seconds int64
	Valid   bool
}

func Seconds(s int64) Duration {
	return Duration{Seconds: s, Valid: true}
}

func (d Duration) String() string {
	if !d.Valid {
		return NotApplicable
	}
	return FormatHM(d.Seconds)
}

func (d Duration) Hobbs() string {
	if !d.Valid {
		return NotApplicable
	}
	return Hobbs(d.Seconds)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return json.Marshal(struct {
			Applicable bool   `json:"applicable"`
			Display    string `json:"display"`
		}{false, NotApplicable})
	}
	return json.Marshal(struct {
		Applicable bool   `json:"applicable"`
		Seconds    int64  `json:"seconds"`
		Display    string `json:"display"`
		Hobbs      string `json:"hobbs"`
	}{true, d.Seconds, d.String(), d.Hobbs()})
}

// Summary is the aggregate over one scope of sessions.
type Summary struct {
	TotalSessions     int      `json:"total_sessions"`
	TotalFlightTime   int64    `json:"total_flight_time"`
	ActiveSessions    int      `json:"active_sessions"`
	ClosedSessions    int      `json:"closed_sessions"`
	ClosedFlightTime  int64    `json:"closed_flight_time"`
	AverageFlightTime Duration `json:"average_flight_time"`
	LongestFlight     Duration `json:"longest_flight"`
	ShortestFlight    Duration `json:"shortest_flight"`
}

// TotalHobbs renders the running total in decimal hours.
func (s Summary) TotalHobbs() string {
	return Hobbs(s.TotalFlightTime)
}

// Compute aggregates sessions. Totals count open and closed sessions; the
// average and extrema only consider closed ones and stay undefined when
// there are none.
func Compute(sessions []models.Session) Summary {
	var sum Summary
	var longest, shortest int64

	for i := range sessions {
		s := &sessions[i]
		sum.TotalSessions++
		sum.TotalFlightTime += s.RunSeconds

		if s.IsOpen() {
			sum.ActiveSessions++
			continue
		}
		if !s.IsClosed() {
			continue
		}

		if sum.ClosedSessions == 0 || s.RunSeconds > longest {
			longest = s.RunSeconds
		}
		if sum.ClosedSessions == 0 || s.RunSeconds < shortest {
			shortest = s.RunSeconds
		}
		sum.ClosedSessions++
		sum.ClosedFlightTime += s.RunSeconds
	}

	if sum.ClosedSessions > 0 {
		sum.AverageFlightTime = Seconds(roundedMean(sum.ClosedFlightTime, int64(sum.ClosedSessions)))
		sum.LongestFlight = Seconds(longest)
		sum.ShortestFlight = Seconds(shortest)
	}
	return sum
}

// roundedMean rounds half up; run seconds are never negative.
func roundedMean(total, n int64) int64 {
	return (2*total + n) / (2 * n)
}

// ByDevice computes a Summary per device token.
func ByDevice(sessions []models.Session) map[string]Summary {
	grouped := make(map[string][]models.Session)
	for _, s := range sessions {
		grouped[s.DeviceToken] = append(grouped[s.DeviceToken], s)
	}

	out := make(map[string]Summary, len(grouped))
	for token, group := range grouped {
		out[token] = Compute(group)
	}
	return out
}

// ByPlane computes a Summary per plane using each device's current plane
// assignment. Planes with assigned devices but no sessions get an empty
// Summary; sessions of unassigned devices are left out.
func ByPlane(sessions []models.Session, devices []models.Device) map[uint]Summary {
	planeOf := make(map[string]uint, len(devices))
	grouped := make(map[uint][]models.Session)
	for _, d := range devices {
		if d.PlaneID == nil {
			continue
		}
		planeOf[d.Token] = *d.PlaneID
		if _, ok := grouped[*d.PlaneID]; !ok {
			grouped[*d.PlaneID] = nil
		}
	}

	for _, s := range sessions {
		planeID, ok := planeOf[s.DeviceToken]
		if !ok {
			continue
		}
		grouped[planeID] = append(grouped[planeID], s)
	}

	out := make(map[uint]Summary, len(grouped))
	for planeID, group := range grouped {
		out[planeID] = Compute(group)
	}
	return out
}

// Recent returns the n most recent sessions by start time, newest first.
func Recent(sessions []models.Session, n int) []models.Session {
	if n <= 0 || len(sessions) == 0 {
		return nil
	}
	sorted := make([]models.Session, len(sessions))
	copy(sorted, sessions)
	SortNewestFirst(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// SortNewestFirst orders sessions by start time descending, ties by ID descending.
func SortNewestFirst(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.SessionStart.Equal(b.SessionStart) {
			return a.SessionStart.After(b.SessionStart)
		}
		return a.ID > b.ID
	})
}

// Hobbs renders seconds as decimal hours with two places.
func Hobbs(seconds int64) string {
	return fmt.Sprintf("%.2f", float64(seconds)/3600)
}

// FormatHM renders seconds as "Hh Mm", dropping leftover seconds.
func FormatHM(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}

// ParseHM reads a duration written by FormatHM back into seconds.
func ParseHM(s string) (int64, error) {
	var h, m int64
	if _, err := fmt.Sscanf(s, "%dh %dm", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return h*3600 + m*60, nil
}
