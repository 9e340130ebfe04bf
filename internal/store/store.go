// Package store persists calculator history, user settings and the last
// balance. One FileStore is shared by every calculator in the process.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkbook-calc/internal/calculator"
)

// ErrNotFound is returned when a history entry id is unknown.
var ErrNotFound = errors.New("store: history entry not found")

// HistoryEntry is one completed calculation.
type HistoryEntry struct {
	ID            string    `json:"id"`
	Expression    string    `json:"expression"`
	Result        float64   `json:"result"`
	Timestamp     time.Time `json:"timestamp"`
	DisplayResult string    `json:"displayResult"`
}

// Settings are the user preferences. Only Mode and CurrencySymbol affect
// calculation; the rest is for the presentation layer.
type Settings struct {
	Mode           calculator.Mode `json:"mode"`
	CurrencySymbol string          `json:"currency_symbol"`
	RetentionDays  int             `json:"retention_days"`
	Theme          string          `json:"theme"`
	SoundEnabled   bool            `json:"sound_enabled"`
	HapticsEnabled bool            `json:"haptics_enabled"`
}

// RetentionChoices are the supported history retention periods in days.
var RetentionChoices = []int{30, 60, 90}

// DefaultSettings returns the settings of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Mode:           calculator.Checkbook,
		CurrencySymbol: calculator.DefaultCurrencySymbol,
		RetentionDays:  30,
		Theme:          "light",
		SoundEnabled:   true,
		HapticsEnabled: true,
	}
}

// Validate checks the settings and returns all issues joined together.
func (s Settings) Validate() error {
	var errs []error

	if s.Mode != calculator.Checkbook && s.Mode != calculator.Scientific {
		errs = append(errs, fmt.Errorf("mode must be checkbook or scientific"))
	}
	if len([]rune(s.CurrencySymbol)) > 3 {
		errs = append(errs, fmt.Errorf("currency_symbol must be at most 3 characters"))
	}

	validRetention := false
	for _, d := range RetentionChoices {
		if s.RetentionDays == d {
			validRetention = true
			break
		}
	}
	if !validRetention {
		errs = append(errs, fmt.Errorf("retention_days must be one of 30, 60, 90"))
	}

	switch s.Theme {
	case "", "light", "dark":
	default:
		errs = append(errs, fmt.Errorf("theme must be light or dark"))
	}

	return errors.Join(errs...)
}

// HistoryWriter records and removes completed calculations.
type HistoryWriter interface {
	SaveHistoryEntry(ctx context.Context, expression string, result float64, displayResult string) (HistoryEntry, error)
	DeleteHistoryEntry(ctx context.Context, id string) error
	PurgeOlderThan(ctx context.Context, retentionDays int) (int, error)
}

// HistoryReader lists completed calculations.
type HistoryReader interface {
	// History returns entries newest first.
	History(ctx context.Context) ([]HistoryEntry, error)
	HistoryEntry(ctx context.Context, id string) (HistoryEntry, error)
}

// SettingsStore loads and saves user settings.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// BalanceStore keeps the last calculated result.
type BalanceStore interface {
	LastBalance(ctx context.Context) (float64, error)
	SaveLastBalance(ctx context.Context, balance float64) error
}

// Store is everything a calculator needs from persistence.
type Store interface {
	HistoryWriter
	HistoryReader
	SettingsStore
	BalanceStore
}
