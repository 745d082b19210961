package main

import (
	"github.com/joho/godotenv"

	"crypto-volatility-alerts/internal/cli"
)

func main() {
	// Missing .env is fine; environment variables win either way.
	_ = godotenv.Load()

	cli.Execute()
}
