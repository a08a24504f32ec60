package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"ArticlesPublisher/internal/domain"
)

// CampaignConfig is the YAML shape of one campaign.
type CampaignConfig struct {
	ID         string                 `yaml:"id"`
	Name       string                 `yaml:"name"`
	Status     string                 `yaml:"status"`
	Source     SourceConfig           `yaml:"source"`
	CMS        CMSConfig              `yaml:"cms"`
	Processing ProcessingConfig       `yaml:"processing"`
	Schedule   CampaignScheduleConfig `yaml:"schedule"`
	Filter     FilterConfig           `yaml:"filter"`
}

// SourceConfig points at the site, feed or sitemap to watch.
type SourceConfig struct {
	URL  string `yaml:"url"`
	Type string `yaml:"type"`
}

// CMSConfig describes the WordPress target. PasswordEnv names an environment
// variable holding the application password and wins over Password.
type CMSConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"passwordEnv"`
	CategoryID  int    `yaml:"categoryId"`
	PostStatus  string `yaml:"postStatus"`
	SEOPlugin   string `yaml:"seoPlugin"`
}

// ProcessingConfig selects as-is or rewrite processing.
type ProcessingConfig struct {
	Mode         string `yaml:"mode"`
	Model        string `yaml:"model"`
	MinWords     int    `yaml:"minWords"`
	MaxWords     int    `yaml:"maxWords"`
	CustomPrompt string `yaml:"customPrompt"`
	StrictImages bool   `yaml:"strictImages"`
}

// CampaignScheduleConfig is the activity window and pacing of a campaign.
type CampaignScheduleConfig struct {
	ActiveDays            []string `yaml:"activeDays"`
	StartHour             int      `yaml:"startHour"`
	EndHour               int      `yaml:"endHour"`
	MinIntervalMinutes    int      `yaml:"minIntervalMinutes"`
	BatchSize             int      `yaml:"batchSize"`
	InterPostDelaySeconds int      `yaml:"interPostDelaySeconds"`
}

// FilterConfig holds the optional date floor (YYYY-MM-DD or RFC 3339) and URL keywords.
type FilterConfig struct {
	StartDate   string   `yaml:"startDate"`
	URLKeywords []string `yaml:"urlKeywords"`
}

// ToDomain validates the campaign and fills defaults.
func (c CampaignConfig) ToDomain() (domain.Campaign, error) {
	id := strings.TrimSpace(c.ID)
	if id == "" {
		return domain.Campaign{}, fmt.Errorf("id is required")
	}
	if err := requireURL("source.url", c.Source.URL); err != nil {
		return domain.Campaign{}, err
	}
	if err := requireURL("cms.url", c.CMS.URL); err != nil {
		return domain.Campaign{}, err
	}

	status := domain.CampaignStatus(strings.ToLower(orDefault(c.Status, string(domain.CampaignActive))))
	if status != domain.CampaignActive && status != domain.CampaignPaused {
		return domain.Campaign{}, fmt.Errorf("status %q is not active or paused", c.Status)
	}

	mode := domain.ProcessingMode(strings.ToLower(orDefault(c.Processing.Mode, string(domain.ModeAsIs))))
	if mode != domain.ModeAsIs && mode != domain.ModeRewrite {
		return domain.Campaign{}, fmt.Errorf("processing.mode %q is not as-is or rewrite", c.Processing.Mode)
	}

	postStatus := domain.PostStatus(strings.ToLower(orDefault(c.CMS.PostStatus, string(domain.PostPublish))))
	if postStatus != domain.PostPublish && postStatus != domain.PostDraft {
		return domain.Campaign{}, fmt.Errorf("cms.postStatus %q is not publish or draft", c.CMS.PostStatus)
	}

	seo := domain.SEOPlugin(strings.ToLower(orDefault(c.CMS.SEOPlugin, string(domain.SEONone))))
	switch seo {
	case domain.SEONone, domain.SEOYoast, domain.SEORankMath:
	default:
		return domain.Campaign{}, fmt.Errorf("cms.seoPlugin %q is not supported", c.CMS.SEOPlugin)
	}

	schedule, err := c.Schedule.toDomain()
	if err != nil {
		return domain.Campaign{}, err
	}
	filter, err := c.Filter.toDomain()
	if err != nil {
		return domain.Campaign{}, err
	}

	password := c.CMS.Password
	if c.CMS.PasswordEnv != "" {
		if v := os.Getenv(c.CMS.PasswordEnv); v != "" {
			password = v
		}
	}

	return domain.Campaign{
		ID:     id,
		Name:   orDefault(c.Name, id),
		Status: status,
		Source: domain.Source{
			URL:  strings.TrimSpace(c.Source.URL),
			Type: strings.ToLower(strings.TrimSpace(c.Source.Type)),
		},
		CMS: domain.CMSTarget{
			URL:        strings.TrimSpace(c.CMS.URL),
			Username:   c.CMS.Username,
			Password:   password,
			CategoryID: c.CMS.CategoryID,
			PostStatus: postStatus,
			SEOPlugin:  seo,
		},
		Processing: domain.ProcessingConfig{
			Mode:         mode,
			Model:        c.Processing.Model,
			MinWords:     c.Processing.MinWords,
			MaxWords:     c.Processing.MaxWords,
			CustomPrompt: c.Processing.CustomPrompt,
			StrictImages: c.Processing.StrictImages,
		},
		Schedule: schedule,
		Filter:   filter,
	}, nil
}

func (s CampaignScheduleConfig) toDomain() (domain.ScheduleConfig, error) {
	if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 23 {
		return domain.ScheduleConfig{}, fmt.Errorf("schedule hours must be within 0..23")
	}
	if s.MinIntervalMinutes < 0 || s.BatchSize < 0 || s.InterPostDelaySeconds < 0 {
		return domain.ScheduleConfig{}, fmt.Errorf("schedule values must not be negative")
	}

	days := make([]time.Weekday, 0, len(s.ActiveDays))
	for _, name := range s.ActiveDays {
		d, ok := domain.ParseWeekday(name)
		if !ok {
			return domain.ScheduleConfig{}, fmt.Errorf("schedule.activeDays: unknown day %q", name)
		}
		days = append(days, d)
	}

	batch := s.BatchSize
	if batch == 0 {
		batch = 1
	}
	interval := s.MinIntervalMinutes
	if interval == 0 {
		interval = 60
	}

	return domain.ScheduleConfig{
		ActiveDays:            days,
		StartHour:             s.StartHour,
		EndHour:               s.EndHour,
		MinIntervalMinutes:    interval,
		BatchSize:             batch,
		InterPostDelaySeconds: s.InterPostDelaySeconds,
	}, nil
}

func (f FilterConfig) toDomain() (domain.FilterConfig, error) {
	out := domain.FilterConfig{}
	for _, kw := range f.URLKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out.URLKeywords = append(out.URLKeywords, kw)
		}
	}

	raw := strings.TrimSpace(f.StartDate)
	if raw == "" {
		return out, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			out.StartDate = &t
			return out, nil
		}
	}
	return out, fmt.Errorf("filter.startDate %q is not a date", f.StartDate)
}

func requireURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s %q is not an http(s) URL", field, raw)
	}
	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
