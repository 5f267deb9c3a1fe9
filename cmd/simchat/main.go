// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command simchat is a terminal client for the AleutianSim interview
// server. It creates a session, reads user turns from stdin, and prints
// the clerk's replies from the server's SSE stream.
//
// Usage:
//
//	simchat chat
//	simchat chat --resume <session-id>
//	simchat turn <session-id> "שלום, אני רוצה הלוואה"
//
// Override the server address with ALEUTIAN_SIM_URL (default
// http://localhost:8080).
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	resumeID   string
	showEvents bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simchat",
		Short: "Terminal client for the AleutianSim interview server",
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive interview session",
		Run:   runChatCommand,
	}
	chatCmd.Flags().StringVar(&resumeID, "resume", "", "Resume an existing session id")
	chatCmd.Flags().BoolVar(&showEvents, "events", false, "Print analysis and transition events")

	turnCmd := &cobra.Command{
		Use:   "turn <session-id> <text>",
		Short: "Send a single turn to an existing session",
		Args:  cobra.MinimumNArgs(2),
		Run:   runTurnCommand,
	}
	turnCmd.Flags().BoolVar(&showEvents, "events", false, "Print analysis and transition events")

	rootCmd.AddCommand(chatCmd, turnCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getSimBaseURL() string {
	if url := os.Getenv("ALEUTIAN_SIM_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

// createSessionResponse mirrors the server's SessionResponse.
type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
}

// turnEvent mirrors the server's SSE event payload.
type turnEvent struct {
	Type     string `json:"type"`
	Analysis *struct {
		Passed      bool     `json:"passed"`
		Reasoning   string   `json:"reasoning"`
		NextState   string   `json:"next_state"`
		Signals     []string `json:"signals"`
		SkipPersist bool     `json:"skip_persist"`
	} `json:"analysis,omitempty"`
	Transition *struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"transition,omitempty"`
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`
}

func runChatCommand(_ *cobra.Command, _ []string) {
	baseURL := getSimBaseURL()

	sessionID := resumeID
	if sessionID == "" {
		id, err := createSession(baseURL)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		sessionID = id
		fmt.Printf("Session: %s\n", sessionID)
	} else {
		fmt.Printf("Resuming session: %s\n", sessionID)
	}
	fmt.Println("Type your turns; 'exit' to quit, '[RESET]' to start over.")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" || text == "q" {
			fmt.Println("Goodbye.")
			break
		}
		if err := sendTurn(baseURL, sessionID, text); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func runTurnCommand(_ *cobra.Command, args []string) {
	baseURL := getSimBaseURL()
	sessionID := args[0]
	text := strings.Join(args[1:], " ")
	if err := sendTurn(baseURL, sessionID, text); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func createSession(baseURL string) (string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL+"/v1/interview/sessions", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("server unavailable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var created createSessionResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	return created.SessionID, nil
}

// sendTurn posts one turn and prints the SSE stream.
func sendTurn(baseURL, sessionID, text string) error {
	payload, _ := json.Marshal(map[string]string{"text": text})
	url := fmt.Sprintf("%s/v1/interview/sessions/%s/turn", baseURL, sessionID)

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("server unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return printEventStream(resp.Body)
}

// printEventStream consumes "event:"/"data:" SSE lines until the done
// event or EOF.
func printEventStream(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var ev turnEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "analysis":
			if showEvents && ev.Analysis != nil {
				fmt.Printf("[analysis] next=%s passed=%v signals=%s\n",
					ev.Analysis.NextState, ev.Analysis.Passed,
					strings.Join(ev.Analysis.Signals, ","))
			}
		case "transition":
			if showEvents && ev.Transition != nil {
				fmt.Printf("[transition] %s -> %s\n", ev.Transition.From, ev.Transition.To)
			}
		case "message":
			fmt.Println(ev.Text)
		case "done":
			return nil
		}
	}
	return scanner.Err()
}
