package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	port := os.Getenv("PAYPROBE_ADMIN_PORT")
	if port == "" {
		port = "8080"
	}
	flag.StringVar(&port, "port", port, "admin API port")
	flag.Parse()

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/__admin/health", port))
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
