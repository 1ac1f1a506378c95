// Package tagging writes metadata into the finished audio file: MP3 via
// ID3v2.4 frames, FLAC via Vorbis comments and a picture block, M4A via an
// ffmpeg metadata pass.
package tagging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/nmoreras/trackfetch/internal/constants"
	"github.com/nmoreras/trackfetch/internal/domain"
)

// Metadata is everything the tag writer embeds: the catalog truth plus
// whatever enrichment and lyrics the pipeline managed to collect.
type Metadata struct {
	Target domain.TargetTrack
	Genres []string
	ISRC   string
	Lyrics *domain.Lyrics
	// CoverArt is the raw image bytes, already downloaded. Empty means no art.
	CoverArt []byte
}

// NewMetadata assembles the tag payload, preferring the catalog's ISRC over
// the enriched one.
func NewMetadata(target domain.TargetTrack, enr *domain.Enrichment, lyr *domain.Lyrics, coverArt []byte) *Metadata {
	m := &Metadata{Target: target, Lyrics: lyr, CoverArt: coverArt, ISRC: target.ISRC}
	if enr != nil {
		m.Genres = enr.Genres
		if m.ISRC == "" {
			m.ISRC = enr.ISRC
		}
	}
	return m
}

// TagFile writes the metadata into the file at path, dispatching on its
// extension.
func TagFile(ctx context.Context, path string, meta *Metadata) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case constants.ExtMP3:
		return tagMP3(path, meta)
	case constants.ExtFLAC:
		return tagFLAC(path, meta)
	case constants.ExtM4A, constants.ExtMP4:
		return tagMP4(ctx, path, meta)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}
}

func tagMP3(path string, meta *Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)

	t := meta.Target
	tag.SetTitle(t.Title)
	tag.SetAlbum(t.Album)
	if len(t.Artists) > 0 {
		tag.AddTextFrame("TPE1", tag.DefaultEncoding(), strings.Join(t.Artists, "\x00"))
	}
	if len(meta.Genres) > 0 {
		tag.SetGenre(meta.Genres[0])
	}
	if t.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), fmt.Sprintf("%d", t.TrackNumber))
	}
	if t.DiscNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Part of a set"), tag.DefaultEncoding(), fmt.Sprintf("%d", t.DiscNumber))
	}
	if t.ReleaseDate != "" {
		tag.AddTextFrame(tag.CommonID("Release time"), tag.DefaultEncoding(), t.ReleaseDate)
	}
	if meta.ISRC != "" {
		tag.AddTextFrame(tag.CommonID("ISRC"), tag.DefaultEncoding(), meta.ISRC)
	}

	if meta.Lyrics != nil && meta.Lyrics.Text != "" {
		desc := ""
		if meta.Lyrics.Synced {
			desc = "LRC"
		}
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          "eng",
			ContentDescriptor: desc,
			Lyrics:            meta.Lyrics.Text,
		})
	}

	if len(meta.CoverArt) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectImageMIME(meta.CoverArt),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     meta.CoverArt,
		})
	}

	return tag.Save()
}

func tagFLAC(path string, meta *Metadata) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	cmt := flacvorbis.New()
	t := meta.Target
	addTag := func(name, value string) {
		if value != "" {
			cmt.Add(name, value)
		}
	}

	addTag("TITLE", t.Title)
	for _, a := range t.Artists {
		addTag("ARTIST", a)
	}
	addTag("ALBUM", t.Album)
	if t.TrackNumber > 0 {
		addTag("TRACKNUMBER", fmt.Sprintf("%d", t.TrackNumber))
	}
	if t.DiscNumber > 0 {
		addTag("DISCNUMBER", fmt.Sprintf("%d", t.DiscNumber))
	}
	addTag("RELEASEDATE", t.ReleaseDate)
	addTag("ISRC", meta.ISRC)
	for _, g := range meta.Genres {
		addTag("GENRE", g)
	}
	if meta.Lyrics != nil && meta.Lyrics.Text != "" {
		if meta.Lyrics.Synced {
			addTag("LYRICS", meta.Lyrics.Text)
		} else {
			addTag("UNSYNCEDLYRICS", meta.Lyrics.Text)
		}
	}

	cmtBlock := cmt.Marshal()

	// Drop any existing comment or picture block, then append the new ones.
	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment || block.Type == flac.Picture {
			continue
		}
		kept = append(kept, block)
	}
	kept = append(kept, &cmtBlock)

	if len(meta.CoverArt) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", meta.CoverArt, detectImageMIME(meta.CoverArt))
		if err != nil {
			return fmt.Errorf("failed to build picture block: %w", err)
		}
		picBlock := pic.Marshal()
		kept = append(kept, &picBlock)
	}

	f.Meta = kept
	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

// tagMP4 rewrites the file through ffmpeg with -metadata flags; MP4 atom
// surgery is not worth hand-rolling when ffmpeg is already a runtime
// dependency for the remux step.
func tagMP4(ctx context.Context, path string, meta *Metadata) error {
	tmpOut := path + ".tagged" + filepath.Ext(path)

	t := meta.Target
	args := []string{"-y", "-i", path}

	if len(meta.CoverArt) > 0 {
		coverPath := path + ".cover" + constants.ExtJPG
		if err := os.WriteFile(coverPath, meta.CoverArt, constants.FilePermissions); err != nil {
			return fmt.Errorf("failed to write cover art: %w", err)
		}
		defer os.Remove(coverPath)
		args = append(args, "-i", coverPath, "-map", "0:a", "-map", "1:v", "-disposition:v:0", "attached_pic")
	}

	args = append(args,
		"-metadata", "title="+t.Title,
		"-metadata", "artist="+strings.Join(t.Artists, "; "),
		"-metadata", "album="+t.Album,
	)
	if t.TrackNumber > 0 {
		args = append(args, "-metadata", fmt.Sprintf("track=%d", t.TrackNumber))
	}
	if t.DiscNumber > 0 {
		args = append(args, "-metadata", fmt.Sprintf("disc=%d", t.DiscNumber))
	}
	if t.ReleaseDate != "" {
		args = append(args, "-metadata", "date="+t.ReleaseDate)
	}
	if len(meta.Genres) > 0 {
		args = append(args, "-metadata", "genre="+meta.Genres[0])
	}
	if meta.Lyrics != nil && meta.Lyrics.Text != "" {
		args = append(args, "-metadata", "lyrics="+meta.Lyrics.Text)
	}
	args = append(args, "-c", "copy", tmpOut)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmpOut)
		return fmt.Errorf("ffmpeg tagging failed: %s (%w)", string(out), err)
	}

	if err := os.Rename(tmpOut, path); err != nil {
		return fmt.Errorf("failed to replace tagged file: %w", err)
	}
	return nil
}

// DownloadImage fetches cover art bytes. An empty URL is a clean no-op.
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: constants.ImageHTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func detectImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}
