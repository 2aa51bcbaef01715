package models

import "time"

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Settings is a singleton row keyed by "default".
type Settings struct {
	ID        string    `gorm:"size:36;primaryKey" json:"id"`
	Model     string    `gorm:"size:128" json:"model"`
	Theme     Theme     `gorm:"size:16;default:'system'" json:"theme"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const SettingsID = "default"
