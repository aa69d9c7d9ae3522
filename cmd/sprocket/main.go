// Command sprocket is the Sprocket CLI client.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/GoCodeAlone/sprocket/internal/version"
)

const defaultServer = "http://localhost:9090"

func main() {
	serverURL := flag.String("server", defaultServer, "sprocket server URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "categories":
		err = cli.cmdCategories(rest)
	case "chat":
		err = cli.cmdChat(rest)
	case "serve":
		fmt.Fprintln(os.Stderr, "use sprocketd to run the server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `sprocket — Sprocket CLI

Usage:
  sprocket [flags] <command> [args]

Flags:
  --server <url>   server URL (default: http://localhost:9090)

Commands:
  version                  print version
  status                   show server status
  categories               list categories
  chat <category-id>       open an interactive chat session
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("sprocket %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	resp, err := c.HTTPClient.Get(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post performs a POST and decodes the JSON response into v (may be nil).
func (c *Client) post(path string, body any, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Post(c.BaseURL+path, "application/json", strings.NewReader(string(data)))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]any
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:   %v\n", result["status"])
	fmt.Printf("version:  %v\n", result["version"])
	fmt.Printf("uptime:   %v\n", result["uptime"])
	fmt.Printf("sessions: %v\n", result["sessions"])
	return nil
}

// --- categories ---

func (c *Client) cmdCategories(_ []string) error {
	var cats []map[string]any
	if err := c.get("/api/categories", &cats); err != nil {
		return err
	}
	if len(cats) == 0 {
		fmt.Println("no categories")
		return nil
	}
	fmt.Printf("%-36s %-24s %-12s %-24s\n", "ID", "NAME", "PROVIDER", "MODEL")
	fmt.Println(strings.Repeat("-", 100))
	for _, cat := range cats {
		fmt.Printf("%-36s %-24s %-12s %-24s\n",
			strVal(cat["id"]),
			truncate(strVal(cat["name"]), 23),
			strVal(cat["provider"]),
			truncate(strVal(cat["model"]), 23),
		)
	}
	return nil
}

// --- chat ---

// cmdChat opens a session against a category, follows its event stream,
// and reads user input from stdin. Task plans proposed by the assistant
// are confirmed with "/start <task-id>", and human subtask results are
// supplied with "/output <task-id> <subtask-id> <text>".
func (c *Client) cmdChat(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: sprocket chat <category-id>")
	}

	var created map[string]string
	if err := c.post("/api/sessions", map[string]string{"category_id": args[0]}, &created); err != nil {
		return err
	}
	sessionID := created["session_id"]
	defer func() {
		req, _ := http.NewRequest(http.MethodDelete, c.BaseURL+"/api/sessions/"+sessionID, nil)
		_, _ = c.HTTPClient.Do(req)
	}()

	fmt.Printf("session %s — type a message, /start <task-id>, /output <task-id> <subtask-id> <text>, or /quit\n", sessionID)

	go c.followEvents(sessionID)

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/start "):
			taskID := strings.TrimSpace(strings.TrimPrefix(line, "/start "))
			if err := c.post("/api/sessions/"+sessionID+"/tasks/"+taskID+"/start", nil, nil); err != nil {
				color.Red("error: %v", err)
			}
		case strings.HasPrefix(line, "/output "):
			fields := strings.SplitN(strings.TrimPrefix(line, "/output "), " ", 3)
			if len(fields) < 3 {
				color.Red("usage: /output <task-id> <subtask-id> <text>")
				continue
			}
			path := "/api/sessions/" + sessionID + "/tasks/" + fields[0] + "/subtasks/" + fields[1] + "/output"
			if err := c.post(path, map[string]string{"output": fields[2]}, nil); err != nil {
				color.Red("error: %v", err)
			}
		default:
			if err := c.post("/api/sessions/"+sessionID+"/messages", map[string]string{"content": line}, nil); err != nil {
				color.Red("error: %v", err)
			}
		}
	}
}

// followEvents tails the session's SSE stream and pretty-prints events.
func (c *Client) followEvents(sessionID string) {
	// No timeout: the stream stays open for the whole session.
	client := &http.Client{}
	resp, err := client.Get(c.BaseURL + "/api/sessions/" + sessionID + "/events")
	if err != nil {
		color.Red("event stream error: %v", err)
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		printEvent(ev.Type, ev.Payload)
	}
}

func printEvent(eventType string, payload json.RawMessage) {
	switch eventType {
	case "chat_response":
		var p struct {
			Content string `json:"content"`
		}
		_ = json.Unmarshal(payload, &p)
		fmt.Printf("\n%s\n> ", p.Content)
	case "task_graph_created":
		var p struct {
			Graph struct {
				TaskID   string `json:"task_id"`
				Subtasks []struct {
					ID       string `json:"id"`
					Name     string `json:"name"`
					Executor string `json:"executor"`
				} `json:"subtasks"`
			} `json:"graph"`
		}
		_ = json.Unmarshal(payload, &p)
		color.Cyan("\ntask plan %s:", p.Graph.TaskID)
		for _, st := range p.Graph.Subtasks {
			color.Cyan("  [%s] %s (%s)", st.ID, st.Name, st.Executor)
		}
		color.Cyan("run /start %s to begin", p.Graph.TaskID)
		fmt.Print("> ")
	case "subtask_status_update":
		var p struct {
			SubtaskID string `json:"subtask_id"`
			Status    string `json:"status"`
			Result    string `json:"result"`
		}
		_ = json.Unmarshal(payload, &p)
		switch p.Status {
		case "succeeded":
			color.Green("\n[%s] %s", p.Status, p.SubtaskID)
		case "failed":
			color.Red("\n[%s] %s: %s", p.Status, p.SubtaskID, p.Result)
		default:
			color.Yellow("\n[%s] %s", p.Status, p.SubtaskID)
		}
		fmt.Print("> ")
	case "task_completed":
		var p struct {
			Summary string `json:"summary"`
		}
		_ = json.Unmarshal(payload, &p)
		fmt.Printf("\n%s\n> ", p.Summary)
	case "error":
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &p)
		color.Red("\n%s", p.Message)
		fmt.Print("> ")
	}
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
