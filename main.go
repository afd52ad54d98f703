package main

import (
	"log"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	transformer := NewTransformer(NewTextCapability(cfg), cfg.TransformTimeout(), cfg.TransformRetries)
	orch := NewOrchestrator(db, transformer, cfg.BatchPause())

	var api *slack.Client
	if cfg.SlackBotToken != "" {
		api = slack.New(cfg.SlackBotToken)
	}

	log.Println("Starting Endorsement Fairness Bot...")
	StartSweepScheduler(cfg, db, api, orch)

	select {}
}
