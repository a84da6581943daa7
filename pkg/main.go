package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	pkg "github.com/parlornet/parlor/pkg/internal"
	"github.com/parlornet/parlor/pkg/internal/http"
	"github.com/parlornet/parlor/pkg/internal/http/api"
	"github.com/parlornet/parlor/pkg/internal/models"
	"github.com/parlornet/parlor/pkg/internal/provider"
	"github.com/parlornet/parlor/pkg/internal/scheduler"
	"github.com/parlornet/parlor/pkg/internal/services"
	"github.com/parlornet/parlor/pkg/internal/store"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" ____            _\n|  _ \\ __ _ _ __| | ___  _ __\n| |_) / _` | '__| |/ _ \\| '__|\n|  __/ (_| | |  | | (_) | |\n|_|   \\__,_|_|  |_|\\___/|_|"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Parlor"), pkg.AppVersion)
	fmt.Printf("The single-seat social feed with synthetic company\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}
	viper.WatchConfig()

	// Open the content store
	warehouse, err := store.New(viper.GetString("datasource.path"))
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when opening the content store.")
	}
	if quarantined, err := warehouse.Sweep(services.Collections...); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when sweeping the content store.")
	} else if len(quarantined) > 0 {
		log.Warn().Strs("documents", quarantined).
			Msg("Some documents were quarantined during the boot sweep.")
	}

	// Wire services
	profiles := services.NewProfiles(warehouse)
	notifications := services.NewNotifications(warehouse)
	posts := services.NewPosts(warehouse)
	comments := services.NewComments(warehouse, posts, notifications)
	reactions := services.NewReactions(warehouse, posts, comments, notifications)
	friends := services.NewFriends(warehouse, profiles, notifications)
	feed := services.NewFeed(posts, comments, reactions, friends)
	audits := services.NewAudits(warehouse)

	// Seed the account directory
	agents := scheduler.AgentsFromConfig()
	directory := []models.Profile{{
		ID:   viper.GetString("user.id"),
		Type: models.ProfileTypePersonal,
		Name: viper.GetString("user.name"),
		Nick: viper.GetString("user.nick"),
	}}
	for _, agent := range agents {
		directory = append(directory, models.Profile{
			ID:      agent.ID,
			Type:    models.ProfileTypeAgent,
			Name:    agent.Name,
			Nick:    agent.Name,
			Persona: agent.Persona,
		})
	}
	if err := profiles.Seed(directory, time.Now()); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when seeding the account directory.")
	}

	// Configure the agent scheduler
	courier := buildProvider()
	quartz := scheduler.New(scheduler.Deps{
		Provider:  courier,
		Posts:     posts,
		Comments:  comments,
		Reactions: reactions,
		Feed:      feed,
		Audits:    audits,
	})
	if courier != nil {
		if err := quartz.Start(agents); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when scheduling agent cycles.")
		}
	} else {
		log.Warn().Msg("No action provider is configured. Agents will stay quiet.")
	}

	// Configure timed tasks
	janitor := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	janitor.AddFunc("@every 60m", func() {
		if removed := warehouse.CleanTemp(); removed > 0 {
			log.Info().Int("count", removed).Msg("Cleaned up abandoned temp files.")
		}
	})
	janitor.Start()

	// Server
	server := http.NewServer(&api.Deps{
		UserID:        viper.GetString("user.id"),
		Posts:         posts,
		Comments:      comments,
		Reactions:     reactions,
		Friends:       friends,
		Feed:          feed,
		Notifications: notifications,
		Audits:        audits,
		Profiles:      profiles,
	})
	go server.Listen()

	// Messages
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("An error occurred when shutting down HTTP server.")
	}
	quartz.Stop()
	janitor.Stop()
}

func buildProvider() provider.Provider {
	apiKey := viper.GetString("provider.gemini_api_key")
	if len(apiKey) == 0 {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if len(apiKey) == 0 {
		return nil
	}

	courier, err := provider.NewGemini(context.Background(), apiKey)
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when setting up the Gemini provider.")
		return nil
	}
	log.Info().Msg("Gemini action provider is ready.")
	return courier
}
