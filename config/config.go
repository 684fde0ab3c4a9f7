package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the configuration with viper. Values come from the
// config file, then the environment (dots become underscores), then the
// defaults below.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it. Using default values and environment variables.")
	}

	// tracker defaults
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("clonehero.score_file", "./clonehero/scoredata.bin")
	viper.SetDefault("clonehero.song_cache", "./clonehero/songcache.bin")
	viper.SetDefault("clonehero.now_playing", "./clonehero/currentsong.txt")
	viper.SetDefault("clonehero.songs_dirs", []string{"./clonehero/Songs"})
	viper.SetDefault("tracker.state_file", "./data/tracker_state.json")
	viper.SetDefault("tracker.credentials_file", "./data/credentials.json")
	viper.SetDefault("tracker.poll_interval_seconds", 1)

	// server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.database_path", "./data/herald.db")
	viper.SetDefault("server.settings_file", "./data/settings.json")
	viper.SetDefault("server.log_file", "./logs/herald.log")

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
		log.Println("Config file not found, using default values and environment variables")
	} else {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// RequireTracker exits unless the keys the tracker cannot run without
// are set.
func RequireTracker() {
	require("server.url", "clonehero.score_file")
}

// RequireServer exits unless the keys the server cannot run without are
// set.
func RequireServer() {
	require("server.database_path", "server.settings_file")
}

func require(keys ...string) {
	missing := []string{}
	for _, k := range keys {
		if !viper.IsSet(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("Required configuration variables not set: %s", strings.Join(missing, ", "))
	}
}
