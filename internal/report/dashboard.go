package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/safespacehub/plane-tracker-site/internal/models"
	"github.com/safespacehub/plane-tracker-site/internal/stats"
)

// DeviceSessions is the outcome of fetching one device's sessions. Err is set
// when the fetch failed; the dashboard then reports the device without stats.
type DeviceSessions struct {
	Device   models.Device
	Sessions []models.Session
	Err      error
}

type DeviceRollup struct {
	Token       string             `json:"token"`
	Device      string             `json:"device"`
	Plane       string             `json:"plane"`
	State       models.DeviceState `json:"state"`
	LastSeenAt  *time.Time         `json:"last_seen_at,omitempty"`
	Stats       stats.Summary      `json:"stats"`
	TotalHobbs  string             `json:"total_hobbs"`
	Unavailable bool               `json:"unavailable,omitempty"`
}

type PlaneRollup struct {
	PlaneID    uint          `json:"plane_id"`
	TailNumber string        `json:"tail_number"`
	Stats      stats.Summary `json:"stats"`
	TotalHobbs string        `json:"total_hobbs"`
}

type Dashboard struct {
	Filter      Filter         `json:"filter"`
	Summary     stats.Summary  `json:"summary"`
	TotalHobbs  string         `json:"total_hobbs"`
	Devices     []DeviceRollup `json:"devices"`
	Planes      []PlaneRollup  `json:"planes"`
	Recent      []Row          `json:"recent"`
	Warnings    []string       `json:"warnings,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// BuildDashboard aggregates the fetched sessions after applying filter. A
// device whose fetch failed contributes a warning and an empty rollup; the
// rest of the dashboard is still computed.
func BuildDashboard(filter Filter, fetched []DeviceSessions, planes []models.Plane, recentN int, now time.Time) Dashboard {
	devices := make([]models.Device, 0, len(fetched))
	for _, f := range fetched {
		devices = append(devices, f.Device)
	}
	dir := NewDirectory(devices, planes)

	d := Dashboard{
		Filter:      filter,
		Devices:     make([]DeviceRollup, 0, len(fetched)),
		Planes:      make([]PlaneRollup, 0, len(planes)),
		GeneratedAt: now,
	}

	var all []models.Session
	var included []DeviceSessions
	for _, f := range fetched {
		if filter.DeviceToken != "" && f.Device.Token != filter.DeviceToken {
			continue
		}
		included = append(included, f)
		if f.Err == nil {
			all = append(all, filter.Apply(f.Sessions)...)
		}
	}
	byDevice := stats.ByDevice(all)

	for _, f := range included {
		rollup := DeviceRollup{
			Token:      f.Device.Token,
			Device:     dir.DeviceLabel(f.Device.Token),
			Plane:      dir.PlaneLabel(f.Device.Token),
			State:      f.Device.State(),
			LastSeenAt: f.Device.LastSeenAt,
		}
		summary, ok := byDevice[f.Device.Token]
		if !ok {
			summary = stats.Compute(nil)
		}
		if f.Err != nil {
			rollup.Unavailable = true
			d.Warnings = append(d.Warnings, fmt.Sprintf("stats unavailable for device %s", rollup.Device))
		}
		rollup.Stats = summary
		rollup.TotalHobbs = summary.TotalHobbs()
		d.Devices = append(d.Devices, rollup)
	}

	sort.SliceStable(d.Devices, func(i, j int) bool {
		return d.Devices[i].Device < d.Devices[j].Device
	})

	d.Summary = stats.Compute(all)
	d.TotalHobbs = d.Summary.TotalHobbs()

	byPlane := stats.ByPlane(all, devices)
	for _, p := range planes {
		summary, ok := byPlane[p.ID]
		if !ok {
			summary = stats.Compute(nil)
		}
		d.Planes = append(d.Planes, PlaneRollup{
			PlaneID:    p.ID,
			TailNumber: p.TailNumber,
			Stats:      summary,
			TotalHobbs: summary.TotalHobbs(),
		})
	}
	sort.SliceStable(d.Planes, func(i, j int) bool {
		return d.Planes[i].TailNumber < d.Planes[j].TailNumber
	})

	d.Recent = BuildRows(stats.Recent(all, recentN), dir)
	return d
}
