package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/much-hall/gomuch/pkg/boltstore"
	"github.com/much-hall/gomuch/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("GOMUCH_CONF", ""), "Path to YAML config file (env: GOMUCH_CONF)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: GOMUCH_PORT)")
	boltPath := flag.String("bolt", envDefault("GOMUCH_BOLT", ""), "Path to bbolt accounts/snapshot store (env: GOMUCH_BOLT)")
	worldFile := flag.String("world", envDefault("GOMUCH_WORLD", ""), "Path to YAML world file (env: GOMUCH_WORLD)")
	textDir := flag.String("textdir", envDefault("GOMUCH_TEXTDIR", ""), "Path to text files directory (env: GOMUCH_TEXTDIR)")
	tlsCert := flag.String("tls-cert", envDefault("GOMUCH_TLS_CERT", ""), "Path to TLS certificate file (env: GOMUCH_TLS_CERT)")
	tlsKey := flag.String("tls-key", envDefault("GOMUCH_TLS_KEY", ""), "Path to TLS private key file (env: GOMUCH_TLS_KEY)")
	tlsPort := flag.String("tls-port", envDefault("GOMUCH_TLS_PORT", ""), "TLS listen port (env: GOMUCH_TLS_PORT)")
	timeout := flag.Duration("timeout", 0, "Stop the server after this duration (smoke tests)")
	genSecret := flag.Bool("gen-jwt-secret", false, "Print a fresh jwt_secret value and exit")
	flag.Parse()

	if *genSecret {
		fmt.Println(server.GenerateJWTSecret())
		return
	}

	log.Printf("Welcome to %s", server.VersionString())

	conf := server.DefaultConf()
	if *confFile != "" {
		var err error
		conf, err = server.LoadConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		log.Printf("Loaded config from %s", *confFile)
	}

	// Flags and environment override config file values.
	if *port == 0 {
		if envPort := os.Getenv("GOMUCH_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}
	if *port != 0 {
		conf.Port = *port
	}
	if *boltPath != "" {
		conf.BoltPath = *boltPath
	}
	if *worldFile != "" {
		conf.WorldFile = *worldFile
	}
	if *textDir != "" {
		conf.TextDir = *textDir
	}
	if *tlsCert != "" {
		conf.TLSCert = *tlsCert
	}
	if *tlsKey != "" {
		conf.TLSKey = *tlsKey
	}
	if *tlsPort != "" {
		if p, err := strconv.Atoi(*tlsPort); err == nil {
			conf.TLSPort = p
		}
	}
	if v := os.Getenv("GOMUCH_TLS"); v != "" {
		conf.TLS = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GOMUCH_CLEARTEXT"); v != "" {
		b := strings.EqualFold(v, "true")
		conf.Cleartext = &b
	}
	if v := os.Getenv("GOMUCH_WEB"); v != "" {
		conf.WebEnabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GOMUCH_GUESTS"); v != "" {
		conf.GuestsAllowed = strings.EqualFold(v, "true")
	}

	if conf.TLSPort == 0 {
		conf.TLSPort = conf.Port + 1
	}
	if conf.TLS && (conf.TLSCert == "" || conf.TLSKey == "") {
		log.Fatalf("TLS is enabled but tls_cert and/or tls_key are not set. " +
			"Provide them via -tls-cert/-tls-key flags, GOMUCH_TLS_CERT/GOMUCH_TLS_KEY " +
			"env vars, or tls_cert/tls_key in the config file.")
	}

	var store *boltstore.Store
	if conf.BoltPath != "" {
		var err error
		store, err = boltstore.Open(conf.BoltPath)
		if err != nil {
			log.Fatalf("Error opening bolt store: %v", err)
		}
		defer store.Close()
		log.Printf("Persistence: %s", conf.BoltPath)
	} else {
		log.Printf("No bolt store configured; running in-memory (guests only, no snapshots)")
	}

	game := server.NewGame(conf, store)
	if err := game.LoadWorld(conf.WorldFile); err != nil {
		log.Fatalf("Error loading world: %v", err)
	}

	if conf.TextDir != "" {
		game.TextDir = conf.TextDir
		game.Texts = server.LoadTextFiles(conf.TextDir)
		game.WatchTextFiles()
	}

	srv := server.NewServer(game)

	// SIGINT/SIGTERM trigger a clean stop: final snapshot, closed listeners.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, shutting down", sig)
		srv.Stop()
	}()
	if *timeout > 0 {
		go func() {
			<-time.After(*timeout)
			log.Printf("Timeout of %s reached, shutting down", *timeout)
			srv.Stop()
		}()
	}

	log.Printf("Starting %s", conf.VenueName)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Goodbye.")
}
