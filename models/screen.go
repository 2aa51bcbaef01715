package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalysisStatus is the lifecycle of a screen's generated description.
type AnalysisStatus string

const (
	AnalysisIdle       AnalysisStatus = "idle"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

func (s AnalysisStatus) Valid() bool {
	switch s {
	case AnalysisIdle, AnalysisProcessing, AnalysisCompleted, AnalysisFailed:
		return true
	}
	return false
}

// Screen is a saved screenshot artifact belonging to a project. Deleting a
// project with screens is refused, so the FK restricts rather than cascades.
type Screen struct {
	ID             string         `gorm:"size:36;primaryKey" json:"id"`
	ProjectID      string         `gorm:"size:36;not null;index" json:"projectId"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	Notes          string         `gorm:"default:''" json:"notes"`
	PreviewURL     string         `json:"previewUrl,omitempty"`
	Analysis       string         `json:"analysis,omitempty"`
	AnalysisStatus AnalysisStatus `gorm:"size:16;not null;default:'idle'" json:"analysisStatus"`
	AnalysisError  string         `json:"analysisError,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`

	Project Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (s *Screen) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.AnalysisStatus == "" {
		s.AnalysisStatus = AnalysisIdle
	}
	return nil
}

// ScreenDescription is the append-only audit log of every successful analysis,
// independent of whether the result was ever attached to a saved screen.
type ScreenDescription struct {
	ID            string         `gorm:"size:36;primaryKey" json:"id"`
	ImageMimeType string         `gorm:"size:64;not null" json:"imageMimeType"`
	ImageSha256   string         `gorm:"size:64;not null;index" json:"imageSha256"`
	Description   string         `gorm:"not null" json:"description"`
	Model         string         `gorm:"size:128;not null" json:"model"`
	Meta          datatypes.JSON `json:"meta,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (d *ScreenDescription) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
