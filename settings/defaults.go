package settings

// defaultFields returns one field palette. The chart-hash format is the
// only non-boolean toggle.
func defaultFields(overrides map[string]any) map[string]any {
	fields := map[string]any{
		"song_title":                  true,
		"artist":                      true,
		"difficulty_instrument":       true,
		"score":                       true,
		"stars":                       true,
		"charter":                     false,
		"accuracy":                    true,
		"play_count":                  false,
		"best_streak":                 false,
		"previous_record":             false,
		"previous_best":               false,
		"server_record_holder":        false,
		"improvement":                 false,
		"enchor_link":                 false,
		"chart_hash":                  false,
		"chart_hash_format":           "abbreviated",
		"timestamp":                   true,
		"footer_show_previous_holder": false,
		"footer_show_previous_score":  false,
		"footer_show_held_duration":   false,
		"footer_show_timestamp":       false,
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return fields
}

func minimalistFields() map[string]any {
	return defaultFields(map[string]any{
		"stars":     false,
		"accuracy":  false,
		"timestamp": false,
	})
}

// Defaults builds the fully-populated settings document.
func Defaults() map[string]any {
	return map[string]any{
		"config_version": CurrentVersion,
		"bot_version":    BotVersion,
		"last_updated":   "",
		"display": map[string]any{
			"timezone":                "America/New_York",
			"date_format":             "MM/DD/YYYY",
			"time_format":             "12-hour",
			"show_timezone_in_embeds": true,
		},
		"api": map[string]any{
			"host":           "0.0.0.0",
			"port":           8080,
			"debug_password": "",
			"rate_limiting": map[string]any{
				"enabled":                 true,
				"max_requests_per_minute": 60,
				"failed_auth_limit":       10,
			},
		},
		"logging": map[string]any{
			"enabled": true,
			"level":   "info",
			"rotation": map[string]any{
				"enabled":      true,
				"max_size_mb":  10,
				"keep_backups": 5,
			},
		},
		"announcements": map[string]any{
			"record_breaks": map[string]any{
				"enabled":     true,
				"embed_color": "#FFD700",
				"style":       "full",
				"full_fields": defaultFields(map[string]any{
					"previous_record":             true,
					"improvement":                 true,
					"footer_show_previous_holder": true,
					"footer_show_previous_score":  true,
					"footer_show_held_duration":   true,
					"footer_show_timestamp":       true,
				}),
				"minimalist_fields":    minimalistFields(),
				"min_score_threshold":  0,
				"ping_previous_holder": false,
			},
			"first_time_scores": map[string]any{
				"enabled":           true,
				"embed_color":       "#00BFFF",
				"style":             "full",
				"full_fields":       defaultFields(nil),
				"minimalist_fields": minimalistFields(),
			},
			"personal_bests": map[string]any{
				"enabled":     true,
				"embed_color": "#32CD32",
				"style":       "minimalist",
				"full_fields": defaultFields(map[string]any{
					"previous_best": true,
					"improvement":   true,
				}),
				"minimalist_fields":       minimalistFields(),
				"min_improvement_percent": 1.0,
				"min_improvement_points":  1000,
				"threshold_mode":          "both",
			},
			"full_combos": map[string]any{
				"enabled":                  true,
				"embed_color":              "#FF4500",
				"style":                    "full",
				"full_fields":              defaultFields(nil),
				"minimalist_fields":        minimalistFields(),
				"announce_regular_fc":      true,
				"announce_first_fc":        true,
				"announce_fc_record_break": true,
				"announce_retroactive_fcs": false,
			},
			"accuracy_display": map[string]any{
				"record_breaks":     map[string]any{"format": "combined_percentage_first", "show_notes_label": true},
				"first_time_scores": map[string]any{"format": "percentage_only", "show_notes_label": true},
				"personal_bests":    map[string]any{"format": "percentage_only", "show_notes_label": true},
				"full_combos":       map[string]any{"format": "notes_only", "show_notes_label": true},
			},
		},
		"difficulty_tiers": map[string]any{
			"tier1": map[string]any{"name": "Warmup", "emoji": "🟢", "min_nps": 0.0, "max_nps": 3.0},
			"tier2": map[string]any{"name": "Challenging", "emoji": "🟡", "min_nps": 3.0, "max_nps": 6.0},
			"tier3": map[string]any{"name": "Intense", "emoji": "🟠", "min_nps": 6.0, "max_nps": 9.0},
			"tier4": map[string]any{"name": "Inhuman", "emoji": "🔴", "min_nps": 9.0, "max_nps": 100.0},
		},
		"hardest_command": map[string]any{
			"min_notes_filter": 100,
			"default_min_nps":  0.0,
			"default_max_nps":  100.0,
		},
		"daily_activity_log": map[string]any{
			"enabled":         false,
			"generation_time": "09:00",
			"keep_days":       30,
		},
	}
}
