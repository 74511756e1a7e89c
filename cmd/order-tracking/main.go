package main

import (
	"log"

	"gozon/order-tracking/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("order tracking service failed: %v", err)
	}
}
