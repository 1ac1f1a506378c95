package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/nmoreras/trackfetch/internal/domain"
)

// PathTemplateData holds the fields a subdirectory template can reference.
// All string fields are pre-sanitized.
type PathTemplateData struct {
	Artist string
	Album  string
	Disc   string
	Track  string
	Title  string
}

// NewPathTemplateData builds template data from the catalog track. Track and
// disc numbers are zero-padded so lexical order matches track order.
func NewPathTemplateData(target domain.TargetTrack) *PathTemplateData {
	artist := Sanitize(target.PrimaryArtist())
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := Sanitize(target.Album)
	if album == "" {
		album = "Unknown Album"
	}

	return &PathTemplateData{
		Artist: artist,
		Album:  album,
		Disc:   fmt.Sprintf("%02d", max(target.DiscNumber, 1)),
		Track:  fmt.Sprintf("%02d", target.TrackNumber),
		Title:  Sanitize(target.Title),
	}
}

// BuildPath renders the subdirectory template under root and appends ext.
func BuildPath(root, templateStr string, data *PathTemplateData, ext string) (string, error) {
	tmpl, err := template.New("subdir").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse path template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute path template: %w", err)
	}

	return filepath.Join(root, buf.String()+ext), nil
}
