package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/2beens/cfdnsadmin/internal"
	"github.com/2beens/cfdnsadmin/internal/auth"
	"github.com/2beens/cfdnsadmin/internal/config"
	"github.com/2beens/cfdnsadmin/internal/logging"
	"github.com/2beens/cfdnsadmin/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using api prefix: [%s]", cfg.APIPrefix)
	log.Debugf("using accounts file: [%s]", cfg.AccountsFilePath)
	log.Debugf("using auth file: [%s]", cfg.AuthFilePath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	if os.Getenv(auth.JWTSecretEnvVar) == "" {
		log.Debugf("%s not set, jwt secret is taken from the auth file", auth.JWTSecretEnvVar)
	}

	redisPassword := os.Getenv("CFDNS_REDIS_PASS")
	if cfg.RedisHost != "" && redisPassword == "" {
		log.Warnln("redis password not set. use CFDNS_REDIS_PASS")
	}

	if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}

	honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
	if honeycombEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	accountsExist, err := pkg.PathExists(cfg.AccountsFilePath, false)
	if err != nil {
		log.Fatalf("check accounts file: %s", err)
	}
	if !accountsExist {
		log.Warnf("accounts file [%s] does not exist yet, it will be created on the first added account", cfg.AccountsFilePath)
	}

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             versionInfo,
			RedisPassword:           redisPassword,
			HoneycombTracingEnabled: honeycombEnabled,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(pkg.BytesToString(stdout)), nil
}
