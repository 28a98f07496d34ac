package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultMusicBrainzURL = "https://musicbrainz.org/ws/2"

// minRecordingScore is the search confidence floor; below it MusicBrainz
// regularly returns a different recording with the same title.
const minRecordingScore = 80

// MusicBrainz is a minimal recording-search client. The limiter enforces
// the public API's one request per second policy process-wide.
type MusicBrainz struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewMusicBrainz(log *zap.Logger) *MusicBrainz {
	return &MusicBrainz{
		baseURL: defaultMusicBrainzURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     log.Named("musicbrainz"),
	}
}

type recordingSearchResponse struct {
	Recordings []struct {
		Score int      `json:"score"`
		Title string   `json:"title"`
		ISRCs []string `json:"isrcs"`
	} `json:"recordings"`
}

// LookupISRC returns the ISRC of the best recording match for a
// title/artist pair, or "" when nothing scores high enough.
func (m *MusicBrainz) LookupISRC(ctx context.Context, title, artist string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf(`recording:"%s" AND artist:"%s"`, escapeQuery(title), escapeQuery(artist))
	endpoint := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=3&inc=isrcs",
		m.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	// The API requires an identifying UA and rejects generic ones.
	req.Header.Set("User-Agent", "cratedig/1.0 (https://github.com/cratedig/cratedig)")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("musicbrainz status %d", resp.StatusCode)
	}

	var body recordingSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode musicbrainz response: %w", err)
	}

	for _, rec := range body.Recordings {
		if rec.Score <= minRecordingScore {
			continue
		}
		for _, isrc := range rec.ISRCs {
			if isrc != "" {
				return strings.ToUpper(isrc), nil
			}
		}
	}
	return "", nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
