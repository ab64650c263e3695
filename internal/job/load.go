package job

import (
	"fmt"
	"os"

	"github.com/amarsjac/openjd-sessions/internal/olog"
)

// Load reads, parses, and validates a job template file.
func Load(path string) (*Template, error) {
	olog.Debug("job: loading template from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job template: %w", err)
	}

	tpl, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load job template: %w", err)
	}

	if err := Validate(tpl); err != nil {
		return nil, fmt.Errorf("load job template: %w", err)
	}

	return tpl, nil
}
