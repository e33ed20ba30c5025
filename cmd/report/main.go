package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"wristband.events/wristband/config"
	v1 "wristband.events/wristband/guestsheet/v1"
	"wristband.events/wristband/report"
	"wristband.events/wristband/security"
)

func main() {
	var (
		cfgPath = flag.String("config", "config.yaml", "path to the config file")
		out     = flag.String("out", "attendance.xlsx", "output workbook path")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	client := v1.NewGuestsheetClient(cfg.Ledger.URL, v1.StationTokenSource(&security.StationIdentity{
		Id:      1,
		Name:    "report",
		Station: cfg.Station.Name,
	}, cfg.Ledger.Secret))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("Fetching guests")
	guests, err := client.Guests.GetAll(ctx)
	if err != nil {
		log.Fatalf("failed to fetch guests: %v", err)
	}
	fmt.Printf("Fetched %d guests\n", len(guests))

	f, err := report.BuildAttendanceWorkbook(guests)
	if err != nil {
		log.Fatalf("failed to build workbook: %v", err)
	}

	if err := f.SaveAs(*out); err != nil {
		log.Fatalf("failed to save workbook: %v", err)
	}
	fmt.Printf("Wrote %s\n", *out)
}
