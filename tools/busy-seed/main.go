package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

// samples are the two canned calendars offered by the web UI.
var samples = map[string]string{
	"A": `{"users":[
  {"id":1,"busy":[["09:00","10:30"],["13:00","14:00"]]},
  {"id":2,"busy":[["11:00","12:00"],["15:00","16:00"]]}
]}`,
	"B": `{"users":[
  {"id":1,"busy":[["09:00","10:00"],["12:00","13:00"]]},
  {"id":2,"busy":[["10:30","11:30"],["14:00","15:00"]]}
]}`,
}

func main() {
	var (
		baseURL = flag.String("base-url", config.String("BASE_URL", "http://127.0.0.1:8000"), "calendar service base url")
		file    = flag.String("file", "", "path to a busy-interval JSON payload")
		sample  = flag.String("sample", "A", "built-in sample payload (A or B), used when -file is empty")
		secret  = flag.String("secret", config.String("JWT_SECRET", ""), "HS256 secret for an ingest token")
	)
	flag.Parse()

	payload, err := loadPayload(*file, *sample)
	if err != nil {
		fatal(err.Error())
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/slots", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpx.RequestIDHeader, httpx.NewRequestID())
	if strings.TrimSpace(*secret) != "" {
		token, err := auth.SignHS256(*secret, "busy-seed", auth.RoleIngest, time.Minute, time.Now())
		if err != nil {
			fatal(err.Error())
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	fmt.Printf("status=%d\n", resp.StatusCode)
	if resp.StatusCode >= 300 {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(string(body)))
		os.Exit(1)
	}
}

func loadPayload(file, sample string) ([]byte, error) {
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%s: invalid JSON", file)
		}
		return raw, nil
	}
	raw, ok := samples[strings.ToUpper(strings.TrimSpace(sample))]
	if !ok {
		return nil, fmt.Errorf("unknown sample %q (want A or B)", sample)
	}
	return []byte(raw), nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
