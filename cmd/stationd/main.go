package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wristband.events/wristband/config"
	"wristband.events/wristband/core/arbiter"
	"wristband.events/wristband/core/engine"
	"wristband.events/wristband/core/ledger"
	"wristband.events/wristband/core/queue"
	"wristband.events/wristband/core/registry"
	"wristband.events/wristband/core/scan"
	"wristband.events/wristband/core/snapshot"
	v1 "wristband.events/wristband/guestsheet/v1"
	"wristband.events/wristband/notify"
	"wristband.events/wristband/reader"
	"wristband.events/wristband/security"
	"wristband.events/wristband/web/handlers"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	if err := config.SetupLogger(cfg.Log.Level); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	secretBytes, err := base64.StdEncoding.DecodeString(cfg.Ledger.Secret)
	if err != nil {
		zap.L().Fatal("ledger.secret is not valid base64", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := v1.NewGuestsheetClient(cfg.Ledger.URL, v1.StationTokenSource(&security.StationIdentity{
		Id:      1,
		Name:    cfg.Station.Name,
		Station: cfg.Station.Name,
	}, cfg.Ledger.Secret))

	serializer := ledger.NewSerializer(client.Guests)

	snap, err := snapshot.Open(cfg.SnapshotPath())
	if err != nil {
		zap.L().Fatal("Failed to open guest snapshot store", zap.Error(err))
	}
	defer snap.Close()

	reg := registry.Open(cfg.RegistryPath())
	q := queue.Open(cfg.QueuePath(), serializer)

	slack := notify.NewSlack(cfg.Slack.Token, cfg.Station.Name, notify.SlackOption{
		InfoChannelID:  cfg.Slack.InfoChannel,
		ErrorChannelID: cfg.Slack.ErrChannel,
	})
	if slack != nil {
		q.SetAlerter(slack)
	}

	arb := arbiter.New()
	rdr := reader.NewSocketReader(cfg.Reader.Socket)
	defer rdr.Close()

	scanner := scan.NewScanner(rdr, arb, reg, q, snap, serializer)

	eng := &engine.Engine{
		Registry: reg,
		Queue:    q,
		Ledger:   serializer,
		Snapshot: snap,
		Scanner:  scanner,
		Arbiter:  arb,
	}
	eng.Start()
	defer eng.Close()

	// Seed the snapshot. Failure is fine: the station works offline from
	// whatever the last run cached.
	go func() {
		if _, err := eng.Refresh(ctx); err != nil {
			zap.L().Warn("Initial guest refresh failed, serving cached snapshot", zap.Error(err))
		}
	}()

	go scanner.RunCheckpoint(ctx, cfg.Station.Name, func(result *scan.CheckInResult, err error) {
		if err != nil {
			zap.L().Debug("Checkpoint scan rejected", zap.Error(err))
			return
		}
		zap.L().Info("Checkpoint check-in",
			zap.String("guest", result.GuestName),
			zap.Int("guest_id", result.GuestID),
			zap.String("station", result.Station))
	})

	r := gin.Default()
	h := &handlers.Handler{Engine: eng, Slack: slack}
	h.Routes(r, secretBytes)

	zap.L().Info("Station daemon starting",
		zap.String("station", cfg.Station.Name),
		zap.String("addr", cfg.Web.Addr))

	if err := r.Run(cfg.Web.Addr); err != nil {
		zap.L().Fatal("HTTP server stopped", zap.Error(err))
	}
}
