package steps

import (
	"fmt"
	"strings"

	"provisor/internal/system"
)

// iniSetting is one key/value pair in a php.ini style file.
type iniSetting struct {
	Key   string
	Value string
}

// Line is the exact text the setting should appear as, which is also what
// the content probe looks for.
func (s iniSetting) Line() string { return s.Key + " = " + s.Value }

// setIni rewrites the ini file at path so that setting holds: an existing
// assignment (commented out or not) is replaced in place, otherwise the line
// is appended. The file must exist — the runtime owning it is installed in
// an earlier step.
func setIni(files system.FS, path string, setting iniSetting) error {
	data, err := files.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimPrefix(trimmed, ";")
		trimmed = strings.TrimSpace(trimmed)
		if strings.HasPrefix(trimmed, setting.Key) {
			rest := strings.TrimPrefix(trimmed, setting.Key)
			if !strings.HasPrefix(strings.TrimSpace(rest), "=") {
				continue // a longer key that merely shares the prefix
			}
			lines[i] = setting.Line()
			replaced = true
			break
		}
	}
	if !replaced {
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines[n-1] = setting.Line()
			lines = append(lines, "")
		} else {
			lines = append(lines, setting.Line(), "")
		}
	}

	return files.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}
