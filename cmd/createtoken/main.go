package main

import (
	"flag"
	"fmt"
	"log"

	"wristband.events/wristband/security"
)

func main() {
	var (
		id      = flag.Int("id", 1, "station id")
		name    = flag.String("name", "kiosk", "station name")
		station = flag.String("station", "reception", "station the kiosk serves")
		secret  = flag.String("secret", "", "base64 signing secret")
		expires = flag.Int64("expires", 86400, "token lifetime in seconds")
	)
	flag.Parse()

	if *secret == "" {
		log.Fatal("-secret is required")
	}

	token, err := security.CreateStationToken(&security.StationIdentity{
		Id:      *id,
		Name:    *name,
		Station: *station,
	}, *secret, *expires)
	if err != nil {
		log.Fatalf("failed to create station token: %v", err)
	}

	fmt.Println(token)
}
