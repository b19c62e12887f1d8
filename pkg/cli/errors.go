package cli

import "errors"

// Common CLI errors
var (
	ErrNoTemplate     = errors.New("a template file or --template is required")
	ErrTwoTemplates   = errors.New("use either a template file or --template, not both")
	ErrNotMapping     = errors.New("record must be a mapping")
	ErrNoRecordsMatch = errors.New("no records match")
	ErrConfigExists   = errors.New("config file already exists")
)
