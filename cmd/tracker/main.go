package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/fretwork/herald/config"
	"github.com/fretwork/herald/logging"
	"github.com/fretwork/herald/metadata"
	"github.com/fretwork/herald/models"
	"github.com/fretwork/herald/scorestate"
	"github.com/fretwork/herald/submit"
	"github.com/fretwork/herald/watcher"
)

// resolveInterval is how often the tracker offers the server metadata
// for hashes nobody has named yet.
const resolveInterval = 10 * time.Minute

func main() {
	config.Load()
	config.RequireTracker()

	logger := logging.New("tracker", os.Stdout)

	serverURL := viper.GetString("server.url")
	credsPath := viper.GetString("tracker.credentials_file")

	creds, err := submit.LoadCredentials(credsPath)
	if err != nil {
		log.Fatalf("Error loading credentials: %v", err)
	}

	client := submit.NewClient(serverURL, creds.AuthToken, logger)

	if creds.AuthToken == "" {
		logger.Printf("no auth token; starting pairing")
		token, err := client.Pair(context.Background(), creds.ClientID, func(code string) {
			fmt.Printf("\n  Pairing code: %s\n  Send this code to the bot within 5 minutes.\n\n", code)
		})
		if err != nil {
			log.Fatalf("Pairing failed: %v", err)
		}
		creds.AuthToken = token
		if err := submit.SaveCredentials(credsPath, creds); err != nil {
			log.Fatalf("Error saving credentials: %v", err)
		}
		logger.Printf("paired successfully")
	}

	store, err := scorestate.Load(viper.GetString("tracker.state_file"), logger)
	if err != nil {
		log.Fatalf("Error loading state store: %v", err)
	}

	resolver := metadata.NewResolver(
		viper.GetString("clonehero.now_playing"),
		viper.GetString("clonehero.song_cache"),
		viper.GetStringSlice("clonehero.songs_dirs"),
		logger,
	)

	pollInterval := time.Duration(viper.GetInt("tracker.poll_interval_seconds")) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	stopPolling := make(chan struct{})
	go resolver.NowPlaying.Start(pollInterval, stopPolling)

	w := watcher.New(viper.GetString("clonehero.score_file"), store, resolver, client, logger)

	go resolveLoop(client, resolver, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Watcher stopped: %v", err)
		}
	case s := <-sig:
		logger.Printf("received %s, shutting down", s)
		w.Stop()
	}
	close(stopPolling)
}

// resolveLoop periodically asks the server which of this user's chart
// hashes still have no song metadata and answers from the local library.
func resolveLoop(client *submit.Client, resolver *metadata.Resolver, logger *log.Logger) {
	resolveOnce(client, resolver, logger)
	ticker := time.NewTicker(resolveInterval)
	defer ticker.Stop()
	for range ticker.C {
		resolveOnce(client, resolver, logger)
	}
}

func resolveOnce(client *submit.Client, resolver *metadata.Resolver, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	hashes, err := client.UnresolvedHashes(ctx)
	if err != nil {
		logger.Printf("fetching unresolved hashes: %v", err)
		return
	}
	if len(hashes) == 0 {
		return
	}

	var metas []submit.ChartNaming
	for _, hash := range hashes {
		res := resolver.ResolveStored(models.Fingerprint{ChartID: hash})
		if res.Title == "" {
			continue
		}
		metas = append(metas, submit.ChartNaming{
			ChartHash: hash,
			Title:     res.Title,
			Artist:    res.Artist,
			Charter:   res.Charter,
		})
	}
	if len(metas) == 0 {
		return
	}

	updated, err := client.ResolveHashes(ctx, metas)
	if err != nil {
		logger.Printf("resolving hashes: %v", err)
		return
	}
	logger.Printf("resolved %d of %d unknown charts", updated, len(hashes))
}
