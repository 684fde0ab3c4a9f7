package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fretwork/herald/auth"
	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/scoring"
)

func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func jsonError(w http.ResponseWriter, statusCode int, message string) {
	jsonResponse(w, statusCode, map[string]string{"error": message})
}

type scorePayload struct {
	AuthToken         string  `json:"auth_token"`
	ChartHash         string  `json:"chart_hash"`
	InstrumentID      *int    `json:"instrument_id"`
	DifficultyID      *int    `json:"difficulty_id"`
	Score             int     `json:"score"`
	CompletionPercent float64 `json:"completion_percent"`
	Stars             int     `json:"stars"`
	SongTitle         string  `json:"song_title"`
	SongArtist        string  `json:"song_artist"`
	SongCharter       string  `json:"song_charter"`
	ScoreType         string  `json:"score_type"`
	NotesHit          *int    `json:"notes_hit"`
	NotesTotal        *int    `json:"notes_total"`
	BestStreak        *int    `json:"best_streak"`
	TotalNotesInChart *int    `json:"total_notes_in_chart"`
	NPS               float64 `json:"nps"`
	PlayCount         int     `json:"play_count"`
}

type scoreResponse struct {
	Success          bool    `json:"success"`
	IsHighScore      bool    `json:"is_high_score"`
	IsRecordBroken   bool    `json:"is_record_broken"`
	IsFirstTimeScore bool    `json:"is_first_time_score"`
	IsPersonalBest   bool    `json:"is_personal_best"`
	IsFullCombo      bool    `json:"is_full_combo"`
	IsFirstFC        bool    `json:"is_first_fc"`
	PreviousScore    *int    `json:"previous_score,omitempty"`
	PreviousHolder   *string `json:"previous_holder,omitempty"`
	YourBestScore    *int    `json:"your_best_score,omitempty"`
}

func (app *application) handleScore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := auth.ClientIP(r)
		if app.limiter.TooManyFailures(ip) {
			jsonError(w, http.StatusTooManyRequests, "too many failed authentications")
			return
		}

		var p scorePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			jsonError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if p.AuthToken == "" || len(p.ChartHash) != 32 ||
			p.InstrumentID == nil || p.DifficultyID == nil || p.Score < 0 {
			jsonError(w, http.StatusBadRequest, "missing or invalid fields")
			return
		}
		if *p.DifficultyID < int(models.Easy) || *p.DifficultyID > int(models.Expert) {
			jsonError(w, http.StatusBadRequest, "unknown difficulty")
			return
		}
		if *p.InstrumentID < int(models.Lead) || *p.InstrumentID > int(models.GhlBass) {
			jsonError(w, http.StatusBadRequest, "unknown instrument")
			return
		}

		result, err := app.scoring.SubmitScore(r.Context(), scoring.Request{
			AuthToken: p.AuthToken,
			Fingerprint: models.Fingerprint{
				ChartID:    p.ChartHash,
				Instrument: models.Instrument(*p.InstrumentID),
				Difficulty: models.Difficulty(*p.DifficultyID),
			},
			Score:             p.Score,
			CompletionPercent: p.CompletionPercent,
			Stars:             p.Stars,
			SongTitle:         p.SongTitle,
			SongArtist:        p.SongArtist,
			SongCharter:       p.SongCharter,
			NotesHit:          p.NotesHit,
			NotesTotal:        p.NotesTotal,
			BestStreak:        p.BestStreak,
			TotalNotesInChart: p.TotalNotesInChart,
			NPS:               p.NPS,
			PlayCount:         p.PlayCount,
		})
		if errors.Is(err, scoring.ErrUnauthorized) {
			app.limiter.RecordFailedAuth(ip)
			jsonError(w, http.StatusUnauthorized, "invalid auth token")
			return
		}
		if err != nil {
			app.logger.Printf("score submission failed: %v", err)
			jsonError(w, http.StatusInternalServerError, "submission failed")
			return
		}

		app.debug.Printf("classified %s for user %d: record=%v first=%v pb=%v fc=%v",
			p.ChartHash[:8], result.User.ID, result.IsRecordBroken,
			result.IsFirstTimeScore, result.IsPersonalBest, result.IsFullCombo)

		resp := scoreResponse{
			Success:          true,
			IsHighScore:      result.IsHighScore,
			IsRecordBroken:   result.IsRecordBroken,
			IsFirstTimeScore: result.IsFirstTimeScore,
			IsPersonalBest:   result.IsPersonalBest,
			IsFullCombo:      result.IsFullCombo,
			IsFirstFC:        result.IsFirstFC,
			PreviousScore:    result.PreviousScore,
			YourBestScore:    result.YourBestScore,
		}
		if result.PreviousHolder != "" {
			resp.PreviousHolder = &result.PreviousHolder
		}
		jsonResponse(w, http.StatusOK, resp)
	}
}

func (app *application) handlePairRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			ClientID string `json:"client_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.ClientID == "" {
			jsonError(w, http.StatusBadRequest, "client_id required")
			return
		}
		code, expiresIn, err := app.pairing.Request(p.ClientID)
		if err != nil {
			app.logger.Printf("pairing request failed: %v", err)
			jsonError(w, http.StatusInternalServerError, "pairing unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"pairing_code": code,
			"expires_in":   expiresIn,
		})
	}
}

func (app *application) handlePairStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.PathValue("client_id")
		if clientID == "" {
			jsonError(w, http.StatusBadRequest, "client_id required")
			return
		}
		token, paired, err := app.pairing.Status(clientID)
		if err != nil {
			app.logger.Printf("pairing status failed: %v", err)
			jsonError(w, http.StatusInternalServerError, "pairing unavailable")
			return
		}
		resp := map[string]any{"paired": paired}
		if paired {
			resp["auth_token"] = token
		}
		jsonResponse(w, http.StatusOK, resp)
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// withBearer resolves the Authorization header to a user before calling
// the handler.
func (app *application) withBearer(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := auth.ClientIP(r)
		if app.limiter.TooManyFailures(ip) {
			jsonError(w, http.StatusTooManyRequests, "too many failed authentications")
			return
		}
		token := auth.BearerToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		user, err := app.database.GetUserByToken(token)
		if err != nil {
			app.logger.Printf("token lookup failed: %v", err)
			jsonError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if user == nil {
			app.limiter.RecordFailedAuth(ip)
			jsonError(w, http.StatusUnauthorized, "invalid auth token")
			return
		}
		next(w, r, user)
	}
}

func (app *application) handleUnresolvedHashes() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user *models.User) {
		hashes, err := app.database.UnresolvedHashes(user.ID)
		if err != nil {
			app.logger.Printf("listing unresolved hashes: %v", err)
			jsonError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if hashes == nil {
			hashes = []string{}
		}
		jsonResponse(w, http.StatusOK, map[string]any{"hashes": hashes})
	}
}

func (app *application) handleResolveHashes() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user *models.User) {
		var p struct {
			Metadata []struct {
				ChartHash string `json:"chart_hash"`
				Title     string `json:"title"`
				Artist    string `json:"artist"`
				Charter   string `json:"charter"`
			} `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			jsonError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		updated := 0
		for _, m := range p.Metadata {
			if len(m.ChartHash) != 32 || m.Title == "" {
				continue
			}
			if err := db.UpsertSong(app.database, &models.Song{
				ChartID: m.ChartHash,
				Title:   m.Title,
				Artist:  m.Artist,
				Charter: m.Charter,
			}); err != nil {
				app.logger.Printf("resolving hash %s: %v", m.ChartHash, err)
				continue
			}
			updated++
		}
		jsonResponse(w, http.StatusOK, map[string]int{"updated_count": updated})
	}
}

func (app *application) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
