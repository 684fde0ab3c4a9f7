package settings

import "encoding/json"

// FieldPalette is the typed form of one full_fields/minimalist_fields
// map. The announcement formatter walks these as struct fields, never as
// string keys.
type FieldPalette struct {
	SongTitle                bool   `json:"song_title"`
	Artist                   bool   `json:"artist"`
	DifficultyInstrument     bool   `json:"difficulty_instrument"`
	Score                    bool   `json:"score"`
	Stars                    bool   `json:"stars"`
	Charter                  bool   `json:"charter"`
	Accuracy                 bool   `json:"accuracy"`
	PlayCount                bool   `json:"play_count"`
	BestStreak               bool   `json:"best_streak"`
	PreviousRecord           bool   `json:"previous_record"`
	PreviousBest             bool   `json:"previous_best"`
	ServerRecordHolder       bool   `json:"server_record_holder"`
	Improvement              bool   `json:"improvement"`
	EnchorLink               bool   `json:"enchor_link"`
	ChartHash                bool   `json:"chart_hash"`
	ChartHashFormat          string `json:"chart_hash_format"` // "abbreviated" | "full"
	Timestamp                bool   `json:"timestamp"`
	FooterShowPreviousHolder bool   `json:"footer_show_previous_holder"`
	FooterShowPreviousScore  bool   `json:"footer_show_previous_score"`
	FooterShowHeldDuration   bool   `json:"footer_show_held_duration"`
	FooterShowTimestamp      bool   `json:"footer_show_timestamp"`
}

// CategoryConfig is one announcements.<category> subtree. The
// category-specific keys are zero for categories that don't carry them.
type CategoryConfig struct {
	Enabled    bool         `json:"enabled"`
	EmbedColor string       `json:"embed_color"`
	Style      string       `json:"style"` // "full" | "minimalist"
	Full       FieldPalette `json:"full_fields"`
	Minimalist FieldPalette `json:"minimalist_fields"`

	MinScoreThreshold  int  `json:"min_score_threshold"`
	PingPreviousHolder bool `json:"ping_previous_holder"`

	MinImprovementPercent float64 `json:"min_improvement_percent"`
	MinImprovementPoints  int     `json:"min_improvement_points"`
	ThresholdMode         string  `json:"threshold_mode"` // "both" | "either"

	AnnounceRegularFC      bool `json:"announce_regular_fc"`
	AnnounceFirstFC        bool `json:"announce_first_fc"`
	AnnounceFCRecordBreak  bool `json:"announce_fc_record_break"`
	AnnounceRetroactiveFCs bool `json:"announce_retroactive_fcs"`
}

// Palette returns the palette selected by the style key.
func (c CategoryConfig) Palette() FieldPalette {
	if c.Style == "minimalist" {
		return c.Minimalist
	}
	return c.Full
}

// AccuracyDisplay is one announcements.accuracy_display.<category>.
type AccuracyDisplay struct {
	Format         string `json:"format"`
	ShowNotesLabel bool   `json:"show_notes_label"`
}

// AnnouncementsConfig is the whole announcements subtree.
type AnnouncementsConfig struct {
	RecordBreaks    CategoryConfig `json:"record_breaks"`
	FirstTimeScores CategoryConfig `json:"first_time_scores"`
	PersonalBests   CategoryConfig `json:"personal_bests"`
	FullCombos      CategoryConfig `json:"full_combos"`
	AccuracyDisplay struct {
		RecordBreaks    AccuracyDisplay `json:"record_breaks"`
		FirstTimeScores AccuracyDisplay `json:"first_time_scores"`
		PersonalBests   AccuracyDisplay `json:"personal_bests"`
		FullCombos      AccuracyDisplay `json:"full_combos"`
	} `json:"accuracy_display"`
}

// DisplayConfig is the display subtree.
type DisplayConfig struct {
	Timezone             string `json:"timezone"`
	DateFormat           string `json:"date_format"`
	TimeFormat           string `json:"time_format"`
	ShowTimezoneInEmbeds bool   `json:"show_timezone_in_embeds"`
}

// APIConfig is the api subtree.
type APIConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	DebugPassword string `json:"debug_password"`
	RateLimiting  struct {
		Enabled              bool `json:"enabled"`
		MaxRequestsPerMinute int  `json:"max_requests_per_minute"`
		FailedAuthLimit      int  `json:"failed_auth_limit"`
	} `json:"rate_limiting"`
}

// LoggingConfig is the logging subtree.
type LoggingConfig struct {
	Enabled  bool   `json:"enabled"`
	Level    string `json:"level"`
	Rotation struct {
		Enabled     bool `json:"enabled"`
		MaxSizeMB   int  `json:"max_size_mb"`
		KeepBackups int  `json:"keep_backups"`
	} `json:"rotation"`
}

// Tier is one difficulty_tiers entry.
type Tier struct {
	Name   string  `json:"name"`
	Emoji  string  `json:"emoji"`
	MinNPS float64 `json:"min_nps"`
	MaxNPS float64 `json:"max_nps"`
}

// TiersConfig is the four NPS bands in ascending order.
type TiersConfig struct {
	Tier1 Tier `json:"tier1"`
	Tier2 Tier `json:"tier2"`
	Tier3 Tier `json:"tier3"`
	Tier4 Tier `json:"tier4"`
}

// ForNPS returns the band containing nps and whether one matched.
func (t TiersConfig) ForNPS(nps float64) (Tier, bool) {
	for _, tier := range []Tier{t.Tier4, t.Tier3, t.Tier2, t.Tier1} {
		if nps >= tier.MinNPS && nps < tier.MaxNPS {
			return tier, true
		}
	}
	return Tier{}, false
}

// HardestConfig is the hardest_command subtree.
type HardestConfig struct {
	MinNotesFilter int     `json:"min_notes_filter"`
	DefaultMinNPS  float64 `json:"default_min_nps"`
	DefaultMaxNPS  float64 `json:"default_max_nps"`
}

// ActivityLogConfig is the daily_activity_log subtree.
type ActivityLogConfig struct {
	Enabled        bool   `json:"enabled"`
	GenerationTime string `json:"generation_time"`
	KeepDays       int    `json:"keep_days"`
}

// decodeView round-trips a subtree through JSON into a typed struct.
// The document came from JSON, so the trip is lossless.
func (s *Settings) decodeView(path string, out any) {
	v := s.Get(path, nil)
	if v == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	json.Unmarshal(data, out)
}

// Announcements decodes the announcements subtree.
func (s *Settings) Announcements() AnnouncementsConfig {
	var cfg AnnouncementsConfig
	s.decodeView("announcements", &cfg)
	return cfg
}

// Display decodes the display subtree.
func (s *Settings) Display() DisplayConfig {
	var cfg DisplayConfig
	s.decodeView("display", &cfg)
	return cfg
}

// API decodes the api subtree.
func (s *Settings) API() APIConfig {
	var cfg APIConfig
	s.decodeView("api", &cfg)
	return cfg
}

// Logging decodes the logging subtree.
func (s *Settings) Logging() LoggingConfig {
	var cfg LoggingConfig
	s.decodeView("logging", &cfg)
	return cfg
}

// Tiers decodes the difficulty_tiers subtree.
func (s *Settings) Tiers() TiersConfig {
	var cfg TiersConfig
	s.decodeView("difficulty_tiers", &cfg)
	return cfg
}

// Hardest decodes the hardest_command subtree.
func (s *Settings) Hardest() HardestConfig {
	var cfg HardestConfig
	s.decodeView("hardest_command", &cfg)
	return cfg
}

// ActivityLog decodes the daily_activity_log subtree.
func (s *Settings) ActivityLog() ActivityLogConfig {
	var cfg ActivityLogConfig
	s.decodeView("daily_activity_log", &cfg)
	return cfg
}
