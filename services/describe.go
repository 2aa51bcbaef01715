package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"screenlens/models"
)

var (
	ErrUnsupportedMime = errors.New("unsupported image mime type")
	ErrNoDescription   = errors.New("no usable description")
)

var supportedImageMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

func SupportedImageMimeType(mime string) bool {
	return supportedImageMimeTypes[mime]
}

const describeSystemPrompt = "You are a practical UX analyst documenting what is visually present on a screen. Be concrete and accurate. Describe only what you can see — do not speculate about behavior or code implementation."

// describePrompt is a contract: the eight sections are what downstream
// consumers of the generated markdown rely on. Do not paraphrase.
const describePrompt = "You are a senior UX analyst. Analyze this UI screenshot and return a structured screen description in markdown focused purely on what is displayed — not interactions or behavior. Use exactly these sections:\n\n" +
	"`Screen Identity` — screen name, likely route/URL, and how a user would arrive here.\n\n" +
	"`Purpose Statement` — one sentence describing the job this screen does for the user.\n\n" +
	"`Information Hierarchy` — what draws the eye first, second, and third; what is primary vs secondary vs tertiary content.\n\n" +
	"`Content Inventory` — every visible piece of text (headings, labels, body copy, microcopy), every data field and what it represents, every image or icon and what it communicates.\n\n" +
	"`Layout Structure` — the regions and zones on screen (e.g. header, sidebar, main content, footer), how content is grouped, and why those groups exist.\n\n" +
	"`Component Breakdown` — list each component present (e.g. card, table, nav, form), what data it displays, and its visual weight on the page.\n\n" +
	"`States Represented` — which state this screenshot captures (e.g. loaded, empty, error, partial data) and what varies between states.\n\n" +
	"`Missing or Implicit Information` — what the user might need that is not shown, and what assumptions the design makes about user knowledge."

// DescribeService turns a screenshot into a structured markdown description
// and records every successful attempt in the audit log.
type DescribeService struct {
	db           *gorm.DB
	provider     ModelProvider
	defaultModel string
}

func NewDescribeService(db *gorm.DB, provider ModelProvider, defaultModel string) *DescribeService {
	return &DescribeService{db: db, provider: provider, defaultModel: defaultModel}
}

// isUpstreamErrorDescription catches model output that is really an error
// message relayed as text; such output must never count as a description.
func isUpstreamErrorDescription(s string) bool {
	normalized := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(normalized, "api error:") || strings.HasPrefix(normalized, "error:")
}

type attemptResult struct {
	description string
	execErr     string
	meta        []byte
}

func (s *DescribeService) runAttempt(ctx context.Context, model, mimeType, imageBase64 string) (attemptResult, error) {
	events, err := s.provider.Query(ctx, QueryRequest{
		Prompt:       describePrompt,
		Image:        &ImageBlock{MediaType: mimeType, Data: imageBase64},
		Model:        model,
		SystemPrompt: describeSystemPrompt,
	})
	if err != nil {
		return attemptResult{}, fmt.Errorf("invoke model: %w", err)
	}

	var res attemptResult
	var generated strings.Builder
	final := ""
	for ev := range events {
		switch ev.Kind {
		case EventTextDelta:
			generated.WriteString(ev.Text)
		case EventResult:
			// The terminal result string is authoritative over deltas.
			if ev.Result != "" {
				final = ev.Result
			}
			res.meta = ev.Raw
		case EventError:
			res.execErr = ev.Err
			res.meta = ev.Raw
		}
	}

	if final != "" {
		res.description = final
	} else {
		res.description = generated.String()
	}
	return res, nil
}

// Describe resolves the configured model, queries it with the fixed prompt,
// retries once with the default model when the configured one cannot process
// the image, and persists an audit row for the usable result.
func (s *DescribeService) Describe(ctx context.Context, imageBase64, imageMimeType string) (*models.ScreenDescription, error) {
	mime := strings.ToLower(strings.TrimSpace(imageMimeType))
	if !SupportedImageMimeType(mime) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMime, mime)
	}

	modelID := s.defaultModel
	var settings models.Settings
	if err := s.db.First(&settings, "id = ?", models.SettingsID).Error; err == nil && settings.Model != "" {
		modelID = settings.Model
	}

	sum := sha256.Sum256([]byte(imageBase64))
	imageSha := hex.EncodeToString(sum[:])

	first, err := s.runAttempt(ctx, modelID, mime, imageBase64)
	if err != nil {
		return nil, err
	}

	description := first.description
	meta := first.meta
	if isUpstreamErrorDescription(description) {
		description = ""
	}

	modelUsed := modelID
	if strings.TrimSpace(description) == "" &&
		strings.Contains(strings.ToLower(first.execErr), "could not process image") &&
		modelID != s.defaultModel {
		fallback, err := s.runAttempt(ctx, s.defaultModel, mime, imageBase64)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(fallback.description) != "" {
			description = fallback.description
			meta = fallback.meta
			if isUpstreamErrorDescription(description) {
				description = ""
			}
			modelUsed = s.defaultModel
		}
	}

	if strings.TrimSpace(description) == "" {
		return nil, ErrNoDescription
	}

	record := models.ScreenDescription{
		ImageMimeType: mime,
		ImageSha256:   imageSha,
		Description:   description,
		Model:         modelUsed,
		Meta:          meta,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("persist description: %w", err)
	}
	return &record, nil
}
