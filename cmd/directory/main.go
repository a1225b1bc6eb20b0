package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vkuchat/vkuchat/pkg/directory"
	"github.com/vkuchat/vkuchat/pkg/protocol"
)

var (
	port    = flag.Int("port", protocol.DefaultDirectoryPort, "Port to listen on")
	apiPort = flag.Int("api-port", 0, "HTTP status API port (0 disables the API)")
)

func main() {
	// A .env file is optional; environment beats nothing, flags beat both.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}
	applyEnvDefaults()

	flag.Parse()

	printBanner()

	server := directory.NewServer(*port)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start directory server: %v", err)
	}

	log.Printf("Directory server ready on port %d", *port)

	var api *directory.APIServer
	if *apiPort != 0 {
		api = directory.NewAPIServer(server, *apiPort)
		if err := api.Start(); err != nil {
			log.Fatalf("Failed to start status API: %v", err)
		}
		log.Printf("Status API listening on port %d", *apiPort)
	}

	waitForShutdown(server, api)
}

// applyEnvDefaults lets the environment override the flag defaults
// before parsing, so explicit flags still win.
func applyEnvDefaults() {
	if v := os.Getenv("VKUCHAT_DIRECTORY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*port = p
		}
	}
	if v := os.Getenv("VKUCHAT_API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*apiPort = p
		}
	}
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║        vkuchat directory server           ║")
	fmt.Println("║   peer rendezvous for direct chat dials   ║")
	fmt.Println("╚═══════════════════════════════════════════╝")
	fmt.Println()
}

func waitForShutdown(server *directory.Server, api *directory.APIServer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	fmt.Println()
	log.Println("Shutting down gracefully...")

	if api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Stop(ctx); err != nil {
			log.Printf("Error stopping status API: %v", err)
		}
	}

	if err := server.Stop(); err != nil {
		log.Printf("Error stopping directory server: %v", err)
	}

	log.Println("Directory server stopped")
}
