package client

import (
	"context"
	"encoding/base64"
	"log"
	"sync"

	"screenlens/imaging"
	"screenlens/models"
)

// ComposeState is the pre-save form: what the user has pasted and whatever
// analysis result has come back for it.
type ComposeState struct {
	Name        string
	Notes       string
	PreviewURL  string
	Analysis    *ScreenDescriptionResponse
	IsAnalyzing bool
	Err         string
}

// Compose coordinates the screenshot-analysis request lifecycle. Requests get
// strictly increasing ids; a screen saved while a request is in flight is
// recorded in the correlation table so the late result patches that screen
// instead of the form. Only one request may be in flight at a time.
type Compose struct {
	api *Client

	mu            sync.Mutex
	counter       int64
	activeID      int64 // 0 when no request is in flight
	pendingTarget map[int64]string
	state         ComposeState
}

func NewCompose(api *Client) *Compose {
	return &Compose{
		api:           api,
		pendingTarget: make(map[int64]string),
	}
}

func (c *Compose) Snapshot() ComposeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Compose) SetName(name string) {
	c.mu.Lock()
	c.state.Name = name
	c.mu.Unlock()
}

func (c *Compose) SetNotes(notes string) {
	c.mu.Lock()
	c.state.Notes = notes
	c.mu.Unlock()
}

func (c *Compose) Reset() {
	c.mu.Lock()
	c.state = ComposeState{IsAnalyzing: c.state.IsAnalyzing}
	c.mu.Unlock()
}

// Analyze starts analysis of a pasted or uploaded image. Returns false
// without doing anything when a request is already in flight; concurrent
// analyze calls are rejected, never queued.
func (c *Compose) Analyze(ctx context.Context, data []byte, mimeType string) bool {
	c.mu.Lock()
	if c.activeID != 0 {
		c.mu.Unlock()
		return false
	}
	c.counter++
	requestID := c.counter
	c.activeID = requestID

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	c.state.PreviewURL = dataURL
	c.state.Analysis = nil
	c.state.Err = ""
	c.state.IsAnalyzing = true
	c.mu.Unlock()

	go c.runAnalysis(ctx, requestID, data, mimeType)
	return true
}

func (c *Compose) runAnalysis(ctx context.Context, requestID int64, data []byte, mimeType string) {
	imageBase64 := base64.StdEncoding.EncodeToString(data)
	imageMimeType := mimeType

	// Normalization failure is non-fatal: fall back to the raw bytes with
	// the declared type and let the server decide.
	if normalized, err := imaging.Normalize(data); err == nil {
		imageBase64 = normalized.Base64
		imageMimeType = normalized.MimeType
	}

	response, err := c.api.DescribeScreenshot(ctx, imageBase64, imageMimeType)
	if err != nil {
		c.resolveFailure(ctx, requestID, err.Error())
	} else {
		c.resolveSuccess(ctx, requestID, response)
	}
}

func (c *Compose) resolveSuccess(ctx context.Context, requestID int64, response *ScreenDescriptionResponse) {
	c.mu.Lock()
	targetScreenID, saved := c.pendingTarget[requestID]
	delete(c.pendingTarget, requestID)
	if !saved {
		c.state.Analysis = response
	}
	c.finish(requestID)
	c.mu.Unlock()

	if saved {
		completed := string(models.AnalysisCompleted)
		empty := ""
		_, err := c.api.UpdateScreen(ctx, targetScreenID, UpdateScreenRequest{
			Analysis:       &response.Description,
			AnalysisStatus: &completed,
			AnalysisError:  &empty,
		})
		// The screen may have been deleted while the analysis was in
		// flight; that is not an error worth surfacing.
		if err != nil && !IsNotFound(err) {
			log.Printf("attach analysis to screen %s: %v", targetScreenID, err)
		}
	}
}

func (c *Compose) resolveFailure(ctx context.Context, requestID int64, message string) {
	c.mu.Lock()
	targetScreenID, saved := c.pendingTarget[requestID]
	delete(c.pendingTarget, requestID)
	if !saved {
		c.state.Err = message
	}
	c.finish(requestID)
	c.mu.Unlock()

	if saved {
		failed := string(models.AnalysisFailed)
		_, err := c.api.UpdateScreen(ctx, targetScreenID, UpdateScreenRequest{
			AnalysisStatus: &failed,
			AnalysisError:  &message,
		})
		if err != nil && !IsNotFound(err) {
			log.Printf("record analysis failure on screen %s: %v", targetScreenID, err)
		}
	}
}

// finish clears in-flight state; callers hold c.mu.
func (c *Compose) finish(requestID int64) {
	c.state.IsAnalyzing = false
	if c.activeID == requestID {
		c.activeID = 0
	}
}

// Save creates the screen from the current form. If an analysis is still in
// flight, the new screen is registered as the target for the active request
// so the result lands on it when it arrives.
func (c *Compose) Save(ctx context.Context, projectID string) (*ScreenResponse, error) {
	c.mu.Lock()
	state := c.state
	activeID := c.activeID
	c.mu.Unlock()

	req := CreateScreenRequest{
		ProjectID:      projectID,
		Name:           state.Name,
		Notes:          state.Notes,
		AnalysisStatus: string(models.AnalysisIdle),
	}
	if state.PreviewURL != "" {
		req.PreviewURL = &state.PreviewURL
	}
	switch {
	case state.IsAnalyzing:
		req.AnalysisStatus = string(models.AnalysisProcessing)
	case state.Analysis != nil:
		req.AnalysisStatus = string(models.AnalysisCompleted)
		req.Analysis = &state.Analysis.Description
	case state.Err != "":
		req.AnalysisStatus = string(models.AnalysisFailed)
		req.AnalysisError = &state.Err
	}

	saved, err := c.api.CreateScreen(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Map only the currently active request; a finished or superseded
	// request must not capture the new screen.
	if activeID != 0 && c.activeID == activeID {
		c.pendingTarget[activeID] = saved.ID
	}
	c.mu.Unlock()

	return saved, nil
}
