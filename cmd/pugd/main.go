package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tfpug/pugd/internal/config"
	"github.com/tfpug/pugd/internal/console"
	"github.com/tfpug/pugd/internal/irc"
	"github.com/tfpug/pugd/internal/plugin"
	"github.com/tfpug/pugd/internal/server"
	"github.com/tfpug/pugd/internal/session"
	"github.com/tfpug/pugd/internal/srcds"
	"github.com/tfpug/pugd/internal/steam"
	"github.com/tfpug/pugd/internal/store"
)

// version is set at build time via ldflags
var version = "dev"

const defaultMap = "cp_badlands"

func main() {
	configPath := flag.String("c", "./pugbot.yaml", "Path to configuration file")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pugd version %s\n", version)
		os.Exit(0)
	}

	irc.Version = version
	run(*configPath)
}

// eventLogger mirrors every session event into the process log.
type eventLogger struct{}

func (eventLogger) HandleEvent(ev plugin.Event) {
	log.Printf("session event: %s %+v", ev.Kind, ev)
}

func run(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	console.Info("* read config file: %s", configPath)

	st, err := store.Open(cfg.DB.File)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()
	console.DB("* connected to sqlite3 db: %s", cfg.DB.File)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	publicIP, err := server.ResolvePublicIP(ctx, nil, "")
	cancel()
	if err != nil {
		log.Printf("public ip lookup failed, falling back to network ip: %v", err)
		publicIP = server.NetworkIP()
	}
	console.Info("* discovered public ip: %s, network ip: %s", publicIP, server.NetworkIP())

	client, err := srcds.Dial(cfg.Rcon.Server, cfg.Rcon.Port, cfg.Rcon.Password)
	if err != nil {
		log.Fatalf("failed to connect to game server: %v", err)
	}
	defer client.Close()

	facade := server.New(client, publicIP)

	logAddr := fmt.Sprintf("%s:%d", facade.PublicIP(), cfg.Rcon.LogPort)
	if err := facade.AddLogAddress(logAddr); err != nil {
		log.Printf("could not register log address %s: %v", logAddr, err)
	}
	listener, err := srcds.ListenLogs(fmt.Sprintf(":%d", cfg.Rcon.LogPort), facade.HandleLogEvent)
	if err != nil {
		log.Printf("could not start log listener: %v", err)
	} else {
		defer listener.Close()
	}
	console.Rcon("* authenticated for rcon: %s:%d, listening on %s",
		cfg.Rcon.Server, cfg.Rcon.Port, logAddr)

	host := plugin.NewHost()
	host.Register(eventLogger{})

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sess := session.New(st, facade, host, rng, cfg.Rcon.Server, cfg.Rcon.Port, defaultMap)

	bot := irc.NewClient(cfg, sess, host, facade, st, steam.NewVerifier(nil, ""))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down", sig)
		bot.Quit()
	}()

	console.IRC("* connecting to %s:%d", cfg.IRC.Server, cfg.IRC.Port)
	if err := bot.Connect(); err != nil {
		log.Fatalf("failed to connect to IRC: %v", err)
	}
	bot.Loop()
	console.IRC("* disconnected, exiting")
}
