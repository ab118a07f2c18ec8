package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Simple liveness probe against a running instance.

func main() {
	url := "http://localhost:8080/health"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	fmt.Println("bulldiary Health Check Utility")
	fmt.Println("------------------------------")

	healthy, err := checkServiceHealth(url)
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	if healthy {
		fmt.Println("Service is healthy!")
	} else {
		fmt.Println("Service is NOT healthy!")
		os.Exit(1)
	}
}

func checkServiceHealth(url string) (bool, error) {
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.Status == "ok", nil
}
