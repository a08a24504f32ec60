package domain

import (
	"strings"
	"time"
)

// CampaignStatus toggles whether the scheduler considers a campaign.
type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
)

// ProcessingMode selects the transform applied between extraction and publish.
type ProcessingMode string

const (
	ModeAsIs    ProcessingMode = "as-is"
	ModeRewrite ProcessingMode = "rewrite"
)

// PostStatus is the status requested from the CMS when publishing.
type PostStatus string

const (
	PostPublish PostStatus = "publish"
	PostDraft   PostStatus = "draft"
)

// SEOPlugin names the CMS SEO plugin whose meta keys are filled on publish.
type SEOPlugin string

const (
	SEONone     SEOPlugin = "none"
	SEOYoast    SEOPlugin = "yoast"
	SEORankMath SEOPlugin = "rankmath"
)

// Campaign binds one source to one CMS target with its own schedule.
type Campaign struct {
	ID         string
	Name       string
	Status     CampaignStatus
	Source     Source
	CMS        CMSTarget
	Processing ProcessingConfig
	Schedule   ScheduleConfig
	Filter     FilterConfig
}

// Active reports whether the scheduler may trigger the campaign.
func (c Campaign) Active() bool {
	return c.Status == CampaignActive
}

// Source describes where candidates are discovered.
type Source struct {
	URL  string
	Type string
}

// CMSTarget holds the connection and publish defaults of a CMS site.
type CMSTarget struct {
	URL        string
	Username   string
	Password   string
	CategoryID int
	PostStatus PostStatus
	SEOPlugin  SEOPlugin
}

// ProcessingConfig drives the per-article pipeline.
type ProcessingConfig struct {
	Mode         ProcessingMode
	Model        string
	MinWords     int
	MaxWords     int
	CustomPrompt string
	StrictImages bool
}

// ScheduleConfig is the time window and pacing of a campaign.
type ScheduleConfig struct {
	ActiveDays            []time.Weekday
	StartHour             int
	EndHour               int
	MinIntervalMinutes    int
	BatchSize             int
	InterPostDelaySeconds int
}

// InWindow reports whether t falls on an active day and inside [StartHour, EndHour).
// An empty day set means every day. StartHour > EndHour wraps past midnight and
// StartHour == EndHour means the whole day.
func (s ScheduleConfig) InWindow(t time.Time) bool {
	if len(s.ActiveDays) > 0 {
		found := false
		for _, d := range s.ActiveDays {
			if d == t.Weekday() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	hour := t.Hour()
	switch {
	case s.StartHour == s.EndHour:
		return true
	case s.StartHour < s.EndHour:
		return hour >= s.StartHour && hour < s.EndHour
	default:
		return hour >= s.StartHour || hour < s.EndHour
	}
}

// MinInterval returns the minimum time between two triggered runs.
func (s ScheduleConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMinutes) * time.Minute
}

// InterPostDelay returns the pause inserted between two article attempts.
func (s ScheduleConfig) InterPostDelay() time.Duration {
	return time.Duration(s.InterPostDelaySeconds) * time.Second
}

// FilterConfig narrows discovered candidates.
type FilterConfig struct {
	StartDate   *time.Time
	URLKeywords []string
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short or long English day names, case-insensitively.
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}
