// Package resolver implements the adaptive EQ resolver (§5): a pure,
// hierarchical song -> album -> genre -> default lookup over a rules
// index, with normalization matching on the track metadata key.
package resolver

import (
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TrackMeta is the subset of now-playing metadata the resolver keys on.
type TrackMeta struct {
	Artist string
	Title  string
	Album  string
	Genre  string
}

// RuleSet is a single matched entry's payload: the EQ preset/curve name
// and its resolved specificity, useful for diagnostics.
type RuleSet struct {
	PresetName string
	Source     MatchLevel
}

// MatchLevel records which hierarchy level satisfied a resolution.
type MatchLevel int

const (
	MatchNone MatchLevel = iota
	MatchDefault
	MatchGenre
	MatchAlbum
	MatchSong
)

func (m MatchLevel) String() string {
	switch m {
	case MatchSong:
		return "song"
	case MatchAlbum:
		return "album"
	case MatchGenre:
		return "genre"
	case MatchDefault:
		return "default"
	default:
		return "none"
	}
}

// RulesIndex holds the three hash maps the resolver looks up against,
// keyed by normalized match key, plus the fallback preset name.
type RulesIndex struct {
	BySong    map[string]string // key: "artist|title"
	ByAlbum   map[string]string // key: "artist|album"
	ByGenre   map[string]string // key: genre
	Default   string
}

// NewRulesIndex creates an empty index with the given default preset.
func NewRulesIndex(defaultPreset string) *RulesIndex {
	return &RulesIndex{
		BySong:  make(map[string]string),
		ByAlbum: make(map[string]string),
		ByGenre: make(map[string]string),
		Default: defaultPreset,
	}
}

// SetSong registers a preset for an exact (artist, title) pair.
func (r *RulesIndex) SetSong(artist, title, preset string) {
	r.BySong[songKey(artist, title)] = preset
}

// SetAlbum registers a preset for an (artist, album) pair.
func (r *RulesIndex) SetAlbum(artist, album, preset string) {
	r.ByAlbum[albumKey(artist, album)] = preset
}

// SetGenre registers a preset for a genre.
func (r *RulesIndex) SetGenre(genre, preset string) {
	r.ByGenre[normalizeKey(genre)] = preset
}

func songKey(artist, title string) string {
	return normalizeKey(artist) + "|" + normalizeKey(title)
}

func albumKey(artist, album string) string {
	return normalizeKey(artist) + "|" + normalizeKey(album)
}

// normalizeKey applies NFC normalization, HTML-entity decoding, case
// folding, and outer-whitespace trimming so metadata originating from
// different sources (streaming APIs, ID3 tags, DLNA DIDL-Lite) matches
// consistently (§5.2).
func normalizeKey(s string) string {
	s = html.UnescapeString(s)
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = strings.TrimSpace(s)
	return s
}

// Resolve is a pure function implementing the strict
// song -> album -> genre -> default priority order (§5.1). It never
// mutates idx and never performs I/O.
func Resolve(meta TrackMeta, idx *RulesIndex) RuleSet {
	if preset, ok := idx.BySong[songKey(meta.Artist, meta.Title)]; ok {
		return RuleSet{PresetName: preset, Source: MatchSong}
	}
	if preset, ok := idx.ByAlbum[albumKey(meta.Artist, meta.Album)]; ok {
		return RuleSet{PresetName: preset, Source: MatchAlbum}
	}
	if preset, ok := idx.ByGenre[normalizeKey(meta.Genre)]; ok {
		return RuleSet{PresetName: preset, Source: MatchGenre}
	}
	return RuleSet{PresetName: idx.Default, Source: MatchDefault}
}
