package main

import (
	"log"

	"valorant-store/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("store service failed: %v", err)
	}
}
