package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EnsureDirectories ensures all required local directories exist
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if !c.Export.IsS3() {
		dirs = append(dirs, c.Export.Dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// IsS3 reports whether the export destination is an s3:// URL
func (c *ExportConfig) IsS3() bool {
	return strings.HasPrefix(c.Dir, "s3://")
}

// GetExportPath returns the destination for an exported file. S3 destinations
// are joined with "/" regardless of platform.
func (c *Config) GetExportPath(filename string) string {
	if c.Export.IsS3() {
		return strings.TrimSuffix(c.Export.Dir, "/") + "/" + filename
	}
	return filepath.Join(c.Export.Dir, filename)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetTimezone returns the zone applied to source timestamps without an offset.
// Returns UTC if not configured or invalid
// Supports formats:
//   - IANA timezone names: "Asia/Tokyo", "America/New_York", "UTC"
//   - Offset format: "+09:00", "-05:00", "+00:00"
func (c *SourceConfig) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}

	// Try parsing as IANA timezone name first
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc
	}

	// Try parsing as offset format (+09:00, -05:00, etc.)
	loc, err = parseOffsetTimezone(c.Timezone)
	if err == nil {
		return loc
	}

	// Default to UTC if parsing fails
	return time.UTC
}

// parseOffsetTimezone parses timezone offset format like "+09:00", "-05:00"
func parseOffsetTimezone(offset string) (*time.Location, error) {
	// Match patterns like +09:00, -05:00, +00:00
	re := regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)
	matches := re.FindStringSubmatch(offset)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid offset format: %s", offset)
	}

	sign := 1
	if matches[1] == "-" {
		sign = -1
	}

	hours, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid hours: %s", matches[2])
	}

	minutes, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, fmt.Errorf("invalid minutes: %s", matches[3])
	}

	offsetSeconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(offset, offsetSeconds), nil
}
