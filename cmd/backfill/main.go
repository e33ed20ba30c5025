package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"wristband.events/wristband/cmd/backfill/helper"
	"wristband.events/wristband/config"
	v1 "wristband.events/wristband/guestsheet/v1"
	"wristband.events/wristband/security"
)

const batchSize = 100

func main() {
	var (
		cfgPath = flag.String("config", "config.yaml", "path to the config file")
		in      = flag.String("in", "", "attendance CSV to import")
	)
	flag.Parse()

	if *in == "" {
		log.Fatal("-in is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	file, err := os.Open(*in)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *in, err)
	}
	defer file.Close()

	fmt.Println("Parsing CSV")
	updates, err := helper.ParseAttendanceCSV(file)
	if err != nil {
		log.Fatalf("failed to parse CSV: %v", err)
	}
	fmt.Printf("Parsed %d updates\n", len(updates))

	client := v1.NewGuestsheetClient(cfg.Ledger.URL, v1.StationTokenSource(&security.StationIdentity{
		Id:      1,
		Name:    "backfill",
		Station: cfg.Station.Name,
	}, cfg.Ledger.Secret))

	for start := 0; start < len(updates); start += batchSize {
		end := start + batchSize
		if end > len(updates) {
			end = len(updates)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := client.Guests.BatchUpdate(ctx, updates[start:end])
		cancel()
		if err != nil {
			log.Fatalf("batch %d-%d failed: %v", start, end, err)
		}

		fmt.Printf("Pushed %d/%d\n", end, len(updates))
	}

	fmt.Println("Completed")
}
