package main

import (
	"github.com/sirupsen/logrus"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/logger"
	"careconnect-visits-svc/src/internal/server"
)

var log = *logrus.StandardLogger()

func main() {
	cfg := config.Load()
	logger.Init(cfg)

	log.Infof("Application %s is starting....", cfg.App.Name)

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		log.WithError(err).Fatalf("Error starting server: %v", err)
	}
}
