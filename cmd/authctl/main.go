// Package main is the entry point for the authctl command
package main

import (
	"os"

	"github.com/jrsteele09/go-auth-engine/cmd/authctl/app"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("authctl failed")
		os.Exit(1)
	}
}
