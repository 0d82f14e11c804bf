package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"arenaserver/internal/adminhttp"
	"arenaserver/internal/ban"
	"arenaserver/internal/browser"
	"arenaserver/internal/client"
	"arenaserver/internal/config"
	"arenaserver/internal/dbworker"
	"arenaserver/internal/instance"
	"arenaserver/internal/maploader"
	"arenaserver/internal/ratelimit"
	"arenaserver/internal/rcon"
	"arenaserver/internal/snapshot"
	"arenaserver/internal/specwatch"
	"arenaserver/internal/tickloop"
	"arenaserver/internal/transport"
	"arenaserver/internal/wire"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

// noopCommandTable is the RCON command registry's interface boundary
// (§1, out of scope): nothing to execute, nothing to dribble, until a
// real game instance wires one in.
type noopCommandTable struct{}

func (noopCommandTable) Execute(line string, accessLevel wire.AuthLevel) string { return "" }
func (noopCommandTable) Filtered(accessLevel wire.AuthLevel) []rcon.CommandRef  { return nil }

// fail logs a startup error and exits with -1, the contract §6 reserves
// for "startup failure (map load, socket bind, secure-RNG init,
// kernel-register)" — as opposed to the 0 a clean shutdown returns.
func fail(format string, args ...any) {
	log.Printf("❌ "+format, args...)
	os.Exit(-1)
}

// runConfigFile feeds each non-empty, non-comment line of path to table
// as a console command at admin level, §6's "run autoexec.cfg before
// processing further args". A missing file is not an error: an
// autoexec.cfg is optional.
func runConfigFile(table rcon.CommandTable, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if out := table.Execute(line, wire.AuthAdmin); out != "" {
			log.Printf("⚙️ %s", out)
		}
	}
}

func main() {
	var silent bool
	flag.BoolVar(&silent, "s", false, "suppress the startup banner")
	flag.BoolVar(&silent, "silent", false, "suppress the startup banner")
	flag.Parse()

	logf := func(format string, args ...any) {
		if !silent {
			log.Printf(format, args...)
		}
	}

	if err := godotenv.Load(); err != nil {
		logf("💡 No .env file found, using environment variables only")
	} else {
		logf("✅ Loaded environment from .env")
	}

	logf("🎮 ================================")
	logf("🎮  ARENA SERVER - TICK ENGINE")
	logf("🎮 ================================")

	cfg := config.Load()
	logf("📡 %s listening on %s:%d", cfg.Network.SvName, cfg.Network.Bindaddr, cfg.Network.SvPort)
	logf("🗺️ Default map: %s (dir %s)", cfg.Game.SvMap, cfg.Game.SvMapDir)
	logf("🛡️ Max clients: %d (%d per IP)", cfg.Game.SvMaxClients, cfg.Game.SvMaxClientsPerIP)

	pool := client.NewPool()
	bans := ban.New()
	rconEngine := rcon.New(cfg.Rcon.SvRconPassword, cfg.Rcon.SvRconModPassword, cfg.Rcon.SvRconMaxTries, cfg.Rcon.SvRconBantime)
	dribbler := rcon.NewDribbler()
	table := noopCommandTable{}

	runConfigFile(table, "autoexec.cfg")
	for _, arg := range flag.Args() {
		if out := table.Execute(arg, wire.AuthAdmin); out != "" {
			fmt.Println(out)
		}
	}

	loader := maploader.New(cfg.Game.SvMapDir)
	router := instance.NewRouter(loader, func(mapName string, instCfg any) (instance.Simulation, error) {
		// Gameplay itself is an out-of-core collaborator (§1); this
		// reference stub keeps every client immediately ready so the
		// network engine is runnable standalone.
		return instance.NewNoopSimulation("0.7", cfg.Game.SvMap, "0.1.0"), nil
	})
	if err := router.InitDefault(cfg.Game.SvMap, nil); err != nil {
		fail("failed to load default map %q: %v", cfg.Game.SvMap, err)
	}

	addr := net.JoinHostPort(cfg.Network.Bindaddr, strconv.Itoa(cfg.Network.SvPort))
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		fail("failed to bind UDP socket on %s: %v", addr, err)
	}
	defer conn.Close()

	prober := browser.NewProber(pool, router, browser.Config{
		ServerVersion: "0.7",
		Name:          cfg.Network.SvName,
		MapName:       cfg.Game.SvMap,
		GameType:      cfg.Game.SvMap,
		Password:      cfg.Network.Password != "",
		MaxClients:    cfg.Game.SvMaxClients,
		Vanilla:       false,
	})

	tr := transport.NewEngine(conn, pool, bans, router, rconEngine, table, dribbler, prober)
	tr.ServerVersion = "0.7"
	tr.ServerPassword = cfg.Network.Password
	tr.RconBanSeconds = cfg.Rcon.SvRconBantime * 60
	tr.OverloadBanSeconds = 600

	if cfg.Netlimit.SvNetlimit > 0 {
		tr.SetTrafficTracker(ratelimit.NewTrafficTracker(cfg.Netlimit.SvNetlimit, cfg.Netlimit.SvNetlimitAlpha))
		logf("🚦 traffic limit enabled: %d bytes/sec, alpha=%d%%", cfg.Netlimit.SvNetlimit, cfg.Netlimit.SvNetlimitAlpha)
	}

	idPool := snapshot.NewIDPool(wire.MaxIDs)

	loop := tickloop.New(pool, router, tr, bans, rconEngine, table, dribbler, idPool, cfg)

	if cfg.Database.SvUseSql {
		worker, err := dbworker.Open(cfg.Database.SvSqliteFile, cfg.Database.TablePrefix, 256)
		if err != nil {
			log.Printf("⚠️ rating database disabled: %v", err)
		} else {
			loop.DB = worker
			logf("💾 rating database: %s (table prefix %q)", cfg.Database.SvSqliteFile, cfg.Database.TablePrefix)
		}
	}

	var spectateHub *specwatch.Hub
	if cfg.Observability.SvSpectatorFeed {
		spectateHub = specwatch.NewHub()
		loop.Spectate = spectateHub
		go spectateHub.Run()
		logf("📺 spectator websocket feed enabled")
	}

	var admin *adminhttp.Server
	if cfg.Observability.AdminHTTPAddr != "" {
		admin = adminhttp.New(cfg.Observability.AdminHTTPAddr, time.Now(), loop, func(r chi.Router) {
			if spectateHub != nil {
				r.Get("/spectate", func(w http.ResponseWriter, req *http.Request) {
					spectateHub.HandleSpectate(w, req)
				})
			}
		})
		go func() {
			for err := range admin.Start() {
				log.Printf("⚠️ admin http server error: %v", err)
			}
		}()
		logf("🔧 admin HTTP on %s (/healthz /state /metrics /debug/pprof)", cfg.Observability.AdminHTTPAddr)
	}

	// The tick loop itself pumps the socket once per tick (§4.L steps
	// 6-7, PumpNetwork) — no separate reader goroutine, keeping every
	// client-slot/instance mutation on the one tick-loop goroutine.
	stop := make(chan struct{})
	go loop.Run(stop)
	logf("✅ Tick loop started at 50Hz")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	logf("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	logf("🛑 Shutting down...")
	close(stop)
	if admin != nil {
		admin.Shutdown()
	}
	logf("👋 Goodbye!")
}
