package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/jphed/youtube-video-music-downloader/api/handlers"
	"github.com/jphed/youtube-video-music-downloader/internal/domain"
)

// apiClient calls the ytmd-server HTTP API
type apiClient struct {
	base string
	http *http.Client
}

// apiError is a non-2xx response with the server's error text
type apiError struct {
	status int
	msg    string
	body   map[string]interface{}
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.msg, e.status)
}

func newAPIClient() (*apiClient, error) {
	base := serverURL
	if base == "" {
		config, err := loadConfig()
		if err != nil {
			return nil, err
		}
		base = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	}
	return &apiClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func (c *apiClient) ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(c.base); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func (c *apiClient) do(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var fields map[string]interface{}
		_ = json.Unmarshal(data, &fields)
		msg, _ := fields["error"].(string)
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return &apiError{status: resp.StatusCode, msg: msg, body: fields}
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// follow prints the events of a job until the server closes the stream
func (c *apiClient) follow(id string) error {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/api/v1/jobs/" + url.PathEscape(id) + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	p := newPlainPrinter(os.Stdout, verbose)
	for {
		var msg handlers.EventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
				return fmt.Errorf("event stream dropped, the client fell behind (try 'ytmd status %s')", id)
			}
			return fmt.Errorf("event stream: %w", err)
		}
		p.print(msg.Event)
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Start a download on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.ensureServer()

		containerName, _ := cmd.Flags().GetString("type")
		quality, _ := cmd.Flags().GetString("quality")
		followFlag, _ := cmd.Flags().GetBool("follow")

		payload := map[string]string{"url": args[0]}
		if containerName != "" {
			payload["container"] = containerName
		}
		if quality != "" {
			payload["quality"] = quality
		}

		var record domain.JobRecord
		if err := client.do(http.MethodPost, "/api/v1/jobs", payload, &record); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.status == http.StatusConflict {
				return fmt.Errorf("a download is already running: %v", apiErr.body["active_job"])
			}
			return err
		}

		fmt.Printf("Download started\n")
		fmt.Printf("ID:      %s\n", record.ID)
		fmt.Printf("Type:    %s\n", record.Container)
		fmt.Printf("Quality: %s\n", record.Quality)

		if !followFlag {
			return nil
		}
		if err := client.follow(record.ID); err != nil {
			return err
		}
		if err := client.do(http.MethodGet, "/api/v1/jobs/"+url.PathEscape(record.ID), nil, &record); err != nil {
			return err
		}
		return recordError(&record)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List downloads known to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.ensureServer()

		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		query := url.Values{}
		if state != "" {
			query.Set("state", state)
		}
		if limit > 0 {
			query.Set("limit", fmt.Sprint(limit))
		}

		var list struct {
			Jobs []*domain.JobRecord `json:"jobs"`
		}
		if err := client.do(http.MethodGet, "/api/v1/jobs?"+query.Encode(), nil, &list); err != nil {
			return err
		}
		printRecords(list.Jobs)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show one download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.ensureServer()

		var record domain.JobRecord
		if err := client.do(http.MethodGet, "/api/v1/jobs/"+url.PathEscape(args[0]), nil, &record); err != nil {
			return err
		}

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", record.ID)
		fmt.Printf("  URL:      %s\n", record.URL)
		fmt.Printf("  Type:     %s\n", record.Container)
		fmt.Printf("  Quality:  %s\n", record.Quality)
		fmt.Printf("  State:    %s\n", record.State)
		if record.Selector != "" {
			fmt.Printf("  Format:   %s\n", record.Selector)
		}
		if record.Degraded {
			fmt.Printf("  Degraded: progressive MP4, FFmpeg was not found\n")
		}
		if record.SavedPath != "" {
			fmt.Printf("  File:     %s\n", record.SavedPath)
		}
		if record.Detail != "" {
			fmt.Printf("  Detail:   %s\n", record.Detail)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel the running download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.do(http.MethodPost, "/api/v1/jobs/"+url.PathEscape(args[0])+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Cancellation requested")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.ensureServer()

		var stats domain.JobStats
		if err := client.do(http.MethodGet, "/api/v1/jobs/stats", nil, &stats); err != nil {
			return err
		}
		printStats(&stats)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringP("type", "t", "", "Output type: video (mp4) or audio (mp3) (default from server config)")
	submitCmd.Flags().StringP("quality", "q", "", "Quality, e.g. best, 720p, 320k")
	submitCmd.Flags().BoolP("follow", "f", false, "Stream progress until the download ends")

	jobsCmd.Flags().StringP("state", "s", "", "Filter by state, e.g. succeeded, running")
	jobsCmd.Flags().IntP("limit", "n", 0, "Maximum number of downloads")
}

// recordError maps a finished record to the process exit code
func recordError(record *domain.JobRecord) error {
	switch record.State {
	case domain.StateSucceeded:
		fmt.Printf("Done. Saved to: %s\n", record.SavedPath)
		return nil
	case domain.StateCancelled:
		return &exitError{code: 130, msg: "Download cancelled"}
	default:
		return &exitError{code: 1, msg: record.Detail}
	}
}
