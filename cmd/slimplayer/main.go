// Command slimplayer is a virtual SlimProto player: it speaks the
// Squeezebox/Logitech Media Server control protocol on behalf of an
// upstream bridge, with no audio decoding of its own.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/micro-nova/slimproto-go/internal/api"
	"github.com/micro-nova/slimproto-go/internal/auth"
	"github.com/micro-nova/slimproto-go/internal/config"
	"github.com/micro-nova/slimproto-go/internal/controller"
	"github.com/micro-nova/slimproto-go/internal/events"
	"github.com/micro-nova/slimproto-go/internal/indicator"
	"github.com/micro-nova/slimproto-go/internal/models"
	"github.com/micro-nova/slimproto-go/internal/netmonitor"
	"github.com/micro-nova/slimproto-go/internal/zeroconf"
)

func main() {
	var (
		name       = flag.String("name", "SqueezeLite", "player name advertised to the server")
		mac        = flag.String("mac", "", "player MAC address (default: first non-loopback interface)")
		server     = flag.String("server", "?", `server address "ip[:port]", or "?" to auto-discover`)
		mode       = flag.String("mode", "pcm,flc,mp3,thru", "processing mode: one of pcm|flc|mp3|thru (the last one given wins), optionally with flow and r:/s:/flac:/mp3: modifiers, comma or space separated")
		sampleRate = flag.Uint("max-sample-rate", 384000, "maximum advertised sample rate")
		bridgeHost = flag.String("bridge-host", "127.0.0.1", "host the decoded-audio bridge URL points at")
		bridgePort = flag.Uint("bridge-port", 9000, "port the decoded-audio bridge URL points at")
		debugAddr  = flag.String("debug-addr", ":9100", "debug/status HTTP listen address")
		cfgDir     = flag.String("config-dir", "", "config directory (default: ~/.config/slimplayer)")
		gpioPin    = flag.String("gpio-pin", "", "BCM GPIO pin name for the status LED (empty disables it)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "slimplayer")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	macAddr, err := resolveMAC(*mac)
	if err != nil {
		slog.Error("cannot resolve MAC address", "err", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	cfg.Server = *server
	cfg.Mode = *mode
	cfg.SampleRate = uint32(*sampleRate)
	cfg.Name = *name
	cfg.MAC = macAddr
	cfg.BridgeHost = *bridgeHost
	cfg.BridgePort = uint16(*bridgePort)

	store := config.NewJSONStore(*cfgDir)
	bus := events.NewBus()

	var ind indicator.Indicator = indicator.NullIndicator{}
	if *gpioPin != "" {
		gpioInd, err := indicator.NewGPIOIndicator(*gpioPin)
		if err != nil {
			slog.Warn("gpio indicator unavailable, falling back to null indicator", "err", err)
		} else {
			ind = gpioInd
			defer gpioInd.Close()
		}
	}

	identity := models.Identity{MAC: macAddr, Name: *name}
	ctrl := controller.New(identity, cfg, store, controller.Deps{
		Bridge:    events.NewBusBridge(bus),
		Indicator: ind,
	})

	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("controller exited", "err", err)
		}
	}()

	watcher, err := config.NewWatcher(*cfgDir, ctrl.UpdateModeAndCodecs)
	if err != nil {
		slog.Warn("config overrides watcher unavailable, live mode/codec reload disabled", "err", err)
	} else {
		defer watcher.Close()
	}

	if mon, err := netmonitor.New(ctrl.WakeForRediscovery); err != nil {
		slog.Info("network-manager monitor unavailable, relying on polling reconnect only", "err", err)
	} else {
		go mon.Run(ctx)
		defer mon.Close()
	}

	authSvc, err := auth.NewService(*cfgDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		os.Exit(1)
	}
	defer authSvc.Close()

	_, portStr, _ := net.SplitHostPort(*debugAddr)
	debugPort, _ := strconv.Atoi(portStr)
	zc := zeroconf.New(*name, macString(macAddr), debugPort)
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()

	router := api.NewRouter(ctrl, authSvc, bus)
	srv := &http.Server{
		Addr:         *debugAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams never time out a write
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("slimplayer debug surface listening", "addr", *debugAddr, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("debug server error", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	ctrl.Stop()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush config", "err", err)
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("debug server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}

// resolveMAC parses an explicit "aa:bb:cc:dd:ee:ff" flag value, or falls
// back to the first non-loopback interface with a hardware address.
func resolveMAC(flagVal string) ([6]byte, error) {
	var mac [6]byte
	if flagVal != "" {
		hw, err := net.ParseMAC(flagVal)
		if err != nil {
			return mac, err
		}
		copy(mac[:], hw)
		return mac, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return mac, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) != 6 {
			continue
		}
		copy(mac[:], iface.HardwareAddr)
		return mac, nil
	}
	return mac, nil // all-zero MAC is a valid (if unusual) fallback
}

func macString(mac [6]byte) string {
	parts := make([]string, 6)
	for i, b := range mac {
		parts[i] = strconv.FormatUint(uint64(b), 16)
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, ":")
}
