package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/fretwork/herald/auth"
	"github.com/fretwork/herald/config"
	"github.com/fretwork/herald/db"
	"github.com/fretwork/herald/logging"
	"github.com/fretwork/herald/scoring"
	"github.com/fretwork/herald/settings"
)

type application struct {
	database *db.DB
	settings *settings.Settings
	scoring  *scoring.Service
	pairing  *auth.PairingService
	limiter  *auth.RateLimiter
	logger   *log.Logger
	debug    *log.Logger
}

func main() {
	config.Load()
	config.RequireServer()

	bootLogger := log.New(log.Writer(), "server: ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := settings.Load(viper.GetString("server.settings_file"), bootLogger)
	if err != nil {
		log.Fatalf("Error loading settings: %v", err)
	}

	out := logging.Writer(viper.GetString("server.log_file"), cfg.Logging())
	logger := logging.New("server", out)

	database, err := db.New(viper.GetString("server.database_path"))
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	if err := database.Initialize(); err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	app := &application{
		database: database,
		settings: cfg,
		scoring:  scoring.NewService(database, logging.New("scoring", out)),
		pairing:  auth.NewPairingService(database, logging.New("pairing", out)),
		limiter:  auth.NewRateLimiter(cfg.API()),
		logger:   logger,
		debug:    logging.Debug("server", out, cfg.Logging()),
	}

	// Catch up on full combos the live path may have missed before the
	// chart totals were known.
	go func() {
		events, err := app.scoring.BackfillFullCombos(context.Background())
		if err != nil {
			logger.Printf("full combo backfill: %v", err)
			return
		}
		if len(events) > 0 {
			logger.Printf("full combo backfill marked %d scores", len(events))
		}
	}()

	go app.housekeeping()

	apiCfg := cfg.API()
	serverAddr := fmt.Sprintf("%s:%d", apiCfg.Host, apiCfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Printf("listening on %s", serverAddr)
	log.Fatal(server.ListenAndServe())
}

// housekeeping sweeps expired pairing codes and resets failed-auth
// lockouts on a coarse timer.
func (app *application) housekeeping() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	resets := 0
	for range ticker.C {
		if err := app.pairing.SweepExpired(); err != nil {
			app.logger.Printf("sweeping pairing codes: %v", err)
		} else {
			app.debug.Printf("swept expired pairing codes")
		}
		resets++
		if resets >= 60 {
			app.limiter.ResetFailures()
			resets = 0
		}
	}
}
