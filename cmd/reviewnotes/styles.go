package main

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	Amber     = lipgloss.Color("#E5A00D")
	DimGray   = lipgloss.Color("#6B7280")
	LightGray = lipgloss.Color("#9CA3AF")
	White     = lipgloss.Color("#F9FAFB")
	Green     = lipgloss.Color("#10B981")
	Red       = lipgloss.Color("#EF4444")
	Blue      = lipgloss.Color("#3B82F6")
)

// Text styles
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	dimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	accentStyle = lipgloss.NewStyle().
			Foreground(Amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(Green)

	noteStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			PaddingLeft(4)
)

// Raw sync status characters (unstyled)
const (
	NotSyncedChar = "○"
	SyncingChar   = "◐"
	SyncedChar    = "✓"
	FailedChar    = "✗"
	DeletedChar   = "⊘"
)

// Note status characters
const (
	DraftNoteChar     = "✎"
	PublishedNoteChar = "●"
)
