// Command rankctl is the operator tool for a rankparty deployment: schema
// setup, admin secret hashing, room inspection and outbox maintenance.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg := &Config{}
	cobra.CheckErr(newRootCmd(cfg).Execute())
}
