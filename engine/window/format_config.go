package window

import (
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/pelletier/go-toml/v2"
)

// ParseFormat decodes a Format from TOML. Keys absent from data keep the NewFormat defaults.
//
// Parameters:
//   - data: TOML document, e.g. `title = "demo"` and `width = 800`
//
// Returns:
//   - Format: the decoded format
//   - error: error if data is not valid TOML or has invalid sizes
func ParseFormat(data []byte) (Format, error) {
	f := NewFormat()
	if err := toml.Unmarshal(data, &f); err != nil {
		return Format{}, fmt.Errorf("failed to decode window format: %w", err)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return Format{}, fmt.Errorf("window format has invalid size %dx%d", f.Width, f.Height)
	}
	f.Title = common.Coalesce(f.Title, "Default Window Title")
	return f, nil
}

// LoadFormat reads and decodes a TOML Format file.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Format: the decoded format
//   - error: error if the file cannot be read or decoded
func LoadFormat(path string) (Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Format{}, fmt.Errorf("failed to read window format %s: %w", path, err)
	}
	return ParseFormat(data)
}
