package writer

import (
	"github.com/idxquant/swingbt/internal/types"
)

// BarWriter defines the interface for persisting downloaded bars.
type BarWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// Write persists a single bar.
	Write(bar types.Bar) error
	// Finalize completes the writing process and returns the output path.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// OutputPath returns the configured output file path.
	OutputPath() string
}
