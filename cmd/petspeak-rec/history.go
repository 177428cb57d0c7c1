package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/pkg/types"
)

// errAnonymousSave is returned when saving is attempted without a user ID.
var errAnonymousSave = errors.New("saving requires a user ID (run with -user)")

// historyClient saves interpretation results to the server-side history.
type historyClient struct {
	baseURL string
	userID  string
	client  *http.Client
}

func newHistoryClient(baseURL, userID string) *historyClient {
	return &historyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Save posts the result as a multipart form to the recordings endpoint.
func (c *historyClient) Save(ctx context.Context, res *analyzer.Result, animal types.AnimalType) error {
	if c.userID == "" {
		return errAnonymousSave
	}

	tips, err := json.Marshal(res.Tips)
	if err != nil {
		return fmt.Errorf("encode tips: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"animalType":    string(animal),
		"transcription": res.Transcription,
		"detectedNeed":  string(res.DetectedNeed),
		"confidence":    strconv.Itoa(res.Confidence),
		"tips":          string(tips),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recordings", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", c.userID)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("save recording: %s", apiErr.Error)
		}
		return fmt.Errorf("save recording: unexpected status %d", resp.StatusCode)
	}
	return nil
}
