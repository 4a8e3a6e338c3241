// Package main implements a standalone mock document store for local testing.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sipico/docstore-token-broker/internal/testutil/mockstore"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mockstore.New(),
	}

	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down mock store...")
		//nolint:errcheck
		srv.Close()
		close(done)
	}()

	log.Printf("Mock document store listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Mock store failed: %v", err)
	}
	<-done
}
