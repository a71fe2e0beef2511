package main

import (
	"log"

	cfg "albumserv/src/configuration"
	"albumserv/src/logging"
	server "albumserv/src/server"
)

func main() {
	config := cfg.ReadProperties()
	logger, err := logging.NewLogger(config.LogLevel, config.Development())
	if err != nil {
		log.Fatalf("can not create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := server.RunServer(config, logger); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
