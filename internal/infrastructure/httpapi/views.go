package httpapi

import (
	"time"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/usecase"
)

// campaignView omits CMS credentials.
type campaignView struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Status     string       `json:"status"`
	SourceURL  string       `json:"source_url"`
	SourceType string       `json:"source_type,omitempty"`
	CMSURL     string       `json:"cms_url"`
	PostStatus string       `json:"post_status"`
	Mode       string       `json:"mode"`
	Model      string       `json:"model,omitempty"`
	Schedule   scheduleView `json:"schedule"`
	Filter     filterView   `json:"filter"`
}

type scheduleView struct {
	ActiveDays            []string `json:"active_days"`
	StartHour             int      `json:"start_hour"`
	EndHour               int      `json:"end_hour"`
	MinIntervalMinutes    int      `json:"min_interval_minutes"`
	BatchSize             int      `json:"batch_size"`
	InterPostDelaySeconds int      `json:"inter_post_delay_seconds"`
}

type filterView struct {
	StartDate   *time.Time `json:"start_date,omitempty"`
	URLKeywords []string   `json:"url_keywords,omitempty"`
}

func newCampaignView(c domain.Campaign) campaignView {
	days := make([]string, 0, len(c.Schedule.ActiveDays))
	for _, d := range c.Schedule.ActiveDays {
		days = append(days, d.String())
	}
	return campaignView{
		ID:         c.ID,
		Name:       c.Name,
		Status:     string(c.Status),
		SourceURL:  c.Source.URL,
		SourceType: c.Source.Type,
		CMSURL:     c.CMS.URL,
		PostStatus: string(c.CMS.PostStatus),
		Mode:       string(c.Processing.Mode),
		Model:      c.Processing.Model,
		Schedule: scheduleView{
			ActiveDays:            days,
			StartHour:             c.Schedule.StartHour,
			EndHour:               c.Schedule.EndHour,
			MinIntervalMinutes:    c.Schedule.MinIntervalMinutes,
			BatchSize:             c.Schedule.BatchSize,
			InterPostDelaySeconds: c.Schedule.InterPostDelaySeconds,
		},
		Filter: filterView{StartDate: c.Filter.StartDate, URLKeywords: c.Filter.URLKeywords},
	}
}

type runView struct {
	RunID      string    `json:"run_id"`
	CampaignID string    `json:"campaign_id"`
	StartedAt  time.Time `json:"started_at"`
	Manual     bool      `json:"manual"`
	LogsURL    string    `json:"logs_url"`
}

func newRunView(info usecase.RunInfo) runView {
	return runView{
		RunID:      info.RunID,
		CampaignID: info.CampaignID,
		StartedAt:  info.StartedAt,
		Manual:     info.Manual,
		LogsURL:    "/ws/logs/" + info.RunID,
	}
}

type categoryView struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type candidateView struct {
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at"`
	Title      string    `json:"title,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
}

type recordView struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	CMSPostID  *int      `json:"cms_post_id"`
	Title      string    `json:"title"`
	SourceURL  string    `json:"source_url"`
	TargetURL  string    `json:"target_url,omitempty"`
	Status     string    `json:"status"`
	TokensUsed *int      `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`
	Logs       []string  `json:"logs"`
}

func newRecordView(r domain.ProcessedRecord) recordView {
	return recordView{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		CMSPostID:  r.CMSPostID,
		Title:      r.Title,
		SourceURL:  r.SourceURL,
		TargetURL:  r.TargetURL,
		Status:     string(r.Status),
		TokensUsed: r.TokensUsed,
		CreatedAt:  r.CreatedAt,
		Logs:       r.Logs,
	}
}
