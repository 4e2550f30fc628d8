package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/daglabs/replicad/logger"
)

const (
	defaultLogFilename    = "replicad.log"
	defaultErrLogFilename = "replicad_err.log"
	defaultTickInterval   = 200 * time.Millisecond
)

var (
	defaultHomeDir    = defaultAppDataDir()
	defaultLogFile    = filepath.Join(defaultHomeDir, defaultLogFilename)
	defaultErrLogFile = filepath.Join(defaultHomeDir, defaultErrLogFilename)
)

// defaultAppDataDir resolves a per-user data directory for replicad's log
// files, falling back to the working directory when the home directory
// can't be determined.
func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".replicad"
	}
	return filepath.Join(home, ".replicad")
}

type config struct {
	NodeID                    string        `long:"node-id" description:"This replica's node id" required:"true"`
	SubnetID                  string        `long:"subnet-id" description:"The subnet id this replica builds payloads for" required:"true"`
	TickInterval              time.Duration `long:"tick-interval" description:"Interval between driver ticks"`
	MaxBlockPayloadSize       uint64        `long:"max-block-payload-size" description:"Subnet record MaxBlockPayloadSize"`
	MaxIngressBytesPerMessage uint64        `long:"max-ingress-bytes-per-message" description:"Subnet record MaxIngressBytesPerMessage"`
	DebugLevel                string        `long:"debuglevel" short:"d" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`
}

func parseConfig() (*config, error) {
	cfg := &config{
		TickInterval:              defaultTickInterval,
		MaxBlockPayloadSize:       4 * 1024 * 1024,
		MaxIngressBytesPerMessage: 1024 * 1024,
		DebugLevel:                "info",
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	if cfg.TickInterval <= 0 {
		return nil, errors.New("--tick-interval must be positive")
	}

	logger.InitLogRotators(defaultLogFile, defaultErrLogFile)
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, errors.Wrap(err, "parsing --debuglevel")
	}

	return cfg, nil
}
