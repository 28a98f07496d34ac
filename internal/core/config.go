package core

import (
	"time"
)

type Config struct {
	Spotify   SpotifyConfig
	Extract   ExtractConfig
	Cache     CacheConfig
	Rekordbox RekordboxConfig
	Enrich    EnrichConfig
	Server    ServerConfig
	Log       LogConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	// Markets is the ordered regional retry cascade for playlists that are
	// invisible in the default market.
	Markets []string
}

type ExtractConfig struct {
	// MaxConcurrent bounds simultaneous browser-driven extractions.
	MaxConcurrent int64
	// PerURLInterval throttles repeat scrapes of the same canonical URL.
	PerURLInterval time.Duration

	HTTPAttempts         int
	HTTPBackoff          time.Duration
	HTTPTimeout          time.Duration
	NavTimeoutFast       time.Duration
	NavTimeoutLegacy     time.Duration
	SelectorWindowFast   time.Duration
	SelectorWindowLegacy time.Duration
	APIWindowFast        time.Duration
	APIWindowLegacy      time.Duration

	MaxScrollRounds    int
	ScrollStableRounds int

	UserAgent string
	Locale    string
	Debug     bool // populate bounded diagnostics on failure
}

type CacheConfig struct {
	Version int
	Size    int
	TTL     time.Duration
}

type RekordboxConfig struct {
	MaxXMLBytes  int64
	ParseTimeout time.Duration
	CacheVersion int
	CacheSize    int
	CacheTTL     time.Duration
}

type EnrichConfig struct {
	// ISRCLimit bounds how many tracks a single request may send to
	// MusicBrainz. Zero means no enrichment cap.
	ISRCLimit int
}

type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
	Language      string
}

type LogConfig struct {
	Level string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			Markets: []string{"JP", "US", "GB", "DE"},
		},
		Extract: ExtractConfig{
			MaxConcurrent:        3,
			PerURLInterval:       2 * time.Second,
			HTTPAttempts:         3,
			HTTPBackoff:          500 * time.Millisecond,
			HTTPTimeout:          10 * time.Second,
			NavTimeoutFast:       8 * time.Second,
			NavTimeoutLegacy:     30 * time.Second,
			SelectorWindowFast:   10 * time.Second,
			SelectorWindowLegacy: 25 * time.Second,
			APIWindowFast:        6 * time.Second,
			APIWindowLegacy:      20 * time.Second,
			MaxScrollRounds:      40,
			ScrollStableRounds:   3,
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			Locale: "ja-JP",
		},
		Cache: CacheConfig{
			Version: 1,
			Size:    256,
			TTL:     5 * time.Minute,
		},
		Rekordbox: RekordboxConfig{
			MaxXMLBytes:  20 * 1024 * 1024,
			ParseTimeout: 30 * time.Second,
			CacheVersion: 1,
			CacheSize:    10,
			CacheTTL:     10 * time.Minute,
		},
		Enrich: EnrichConfig{
			ISRCLimit: 25,
		},
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  120 * time.Second,
			MaxUploadSize: 5 * 1024 * 1024,
			Language:      "en",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
