// Package spotify fetches playlists through the Web API using application
// credentials, with a regional retry cascade for playlists that are not
// visible in the default market.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	spot "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"cratedig/internal/core"
	"cratedig/internal/i18n"
	"cratedig/pkg/storelink"
	"cratedig/pkg/textrepair"
	"cratedig/pkg/trackkey"
)

// editorialPrefix marks Spotify-curated playlists. They are rejected before
// any network call: app credentials cannot read them reliably across
// regions, and the raw API error gives users nothing to act on.
const editorialPrefix = "37i9dQZF"

const pageSize = 100

// Client is the direct-API fetcher. The underlying API client is built
// lazily so apple-only deployments never need Spotify credentials.
type Client struct {
	cfg core.SpotifyConfig
	loc *i18n.Localizer
	log *zap.Logger

	mu  sync.Mutex
	api *spot.Client
}

func New(cfg core.SpotifyConfig, loc *i18n.Localizer, log *zap.Logger) *Client {
	return &Client{cfg: cfg, loc: loc, log: log.Named("spotify")}
}

// FetchPlaylist retrieves and normalizes a playlist by its 22-character ID.
func (c *Client) FetchPlaylist(ctx context.Context, id string) (*core.PlaylistResult, error) {
	if IsEditorialID(id) {
		return nil, &core.UpstreamError{
			Source: core.SourceSpotify,
			Code:   "editorial_playlist",
			Hint:   c.loc.T("editorial_playlist_blocked", id),
		}
	}

	api, err := c.ensureAPI(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, market := range c.cfg.Markets {
		pl, err := api.GetPlaylist(ctx, spot.ID(id), spot.Market(market))
		if err != nil {
			if marketRetryable(err) {
				c.log.Debug("playlist not visible in market",
					zap.String("playlist", id),
					zap.String("market", market),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
			return nil, &core.UpstreamError{
				Source: core.SourceSpotify,
				Code:   "api_error",
				Hint:   "Spotify rejected the request; verify the playlist is public.",
				Err:    err,
			}
		}

		tracks, err := c.fetchAllItems(ctx, api, id, market)
		if err != nil {
			return nil, err
		}

		name := textrepair.Fix(pl.Name)
		c.log.Info("playlist fetched",
			zap.String("playlist", id),
			zap.String("market", market),
			zap.Int("tracks", len(tracks)),
		)
		return &core.PlaylistResult{
			ID:           id,
			Name:         name,
			CanonicalURL: playlistURL(pl, id),
			Tracks:       tracks,
			Meta: map[string]any{
				"source": string(core.SourceSpotify),
				"market": market,
			},
		}, nil
	}

	return nil, &core.UpstreamError{
		Source: core.SourceSpotify,
		Code:   "not_found_any_market",
		Hint:   c.loc.T("playlist_not_found_any_market", strings.Join(c.cfg.Markets, ", ")),
		Err:    lastErr,
	}
}

// Search finds the closest catalog track for a title/artist pair. Used by
// the enrichment layer for tracks that came from other catalogs.
func (c *Client) Search(ctx context.Context, title, artist string) (*core.TrackRecord, error) {
	api, err := c.ensureAPI(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	res, err := api.Search(ctx, query, spot.SearchTypeTrack, spot.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, nil
	}
	tr := convertFullTrack(&res.Tracks.Tracks[0])
	return &tr, nil
}

func (c *Client) fetchAllItems(ctx context.Context, api *spot.Client, id, market string) ([]core.TrackRecord, error) {
	var out []core.TrackRecord
	for offset := 0; ; offset += pageSize {
		page, err := api.GetPlaylistItems(ctx, spot.ID(id),
			spot.Market(market), spot.Limit(pageSize), spot.Offset(offset))
		if err != nil {
			return nil, &core.UpstreamError{
				Source: core.SourceSpotify,
				Code:   "api_error",
				Hint:   "Spotify failed while paging playlist items.",
				Err:    err,
			}
		}
		for i := range page.Items {
			// Episodes and local files have no FullTrack.
			ft := page.Items[i].Track.Track
			if ft == nil {
				continue
			}
			out = append(out, convertFullTrack(ft))
		}
		if len(page.Items) < pageSize || offset+pageSize >= int(page.Total) {
			break
		}
	}
	return out, nil
}

// ensureAPI performs the client-credentials exchange once.
func (c *Client) ensureAPI(ctx context.Context) (*spot.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return nil, &core.ConfigError{
			Msg: "spotify credentials missing: set CRATEDIG_SPOTIFY_CLIENT_ID and CRATEDIG_SPOTIFY_CLIENT_SECRET",
		}
	}

	conf := &clientcredentials.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := conf.Token(ctx)
	if err != nil {
		return nil, &core.UpstreamError{
			Source: core.SourceSpotify,
			Code:   "auth_failed",
			Hint:   "Spotify credential exchange failed; check client ID and secret.",
			Err:    err,
		}
	}
	c.api = spot.New(spotifyauth.New().Client(ctx, token))
	c.log.Info("spotify client ready")
	return c.api, nil
}

// IsEditorialID reports whether a playlist ID belongs to Spotify's own
// curated catalog.
func IsEditorialID(id string) bool {
	return strings.HasPrefix(id, editorialPrefix)
}

// marketRetryable reports whether an API error means "not visible here, try
// the next market" rather than a hard failure.
func marketRetryable(err error) bool {
	var serr spot.Error
	if errors.As(err, &serr) {
		return serr.Status == 403 || serr.Status == 404
	}
	return false
}

func convertFullTrack(ft *spot.FullTrack) core.TrackRecord {
	title := textrepair.Fix(ft.Name)
	album := textrepair.Fix(ft.Album.Name)

	names := make([]string, 0, len(ft.Artists))
	for _, a := range ft.Artists {
		names = append(names, textrepair.Fix(a.Name))
	}
	artist := strings.Join(names, ", ")

	isrc := strings.ToUpper(ft.ExternalIDs["isrc"])

	tr := core.TrackRecord{
		Title:  title,
		Artist: artist,
		Album:  album,
		ISRC:   isrc,
		SourceURLs: core.SourceURLs{
			Spotify: ft.ExternalURLs["spotify"],
		},
	}
	links := storelink.Build(title, artist, album, isrc)
	tr.StoreLinks = core.StoreLinks{
		Beatport: links.Beatport,
		Bandcamp: links.Bandcamp,
		ITunes:   links.ITunes,
	}

	keys := trackkey.Derive(title, artist, album, isrc)
	tr.TrackKeyPrimary = keys.Primary
	tr.TrackKeyFallback = keys.Fallback
	tr.TrackKeyType = keys.Type
	tr.TrackKeyVersion = keys.Version
	return tr
}

func playlistURL(pl *spot.FullPlaylist, id string) string {
	if u, ok := pl.ExternalURLs["spotify"]; ok && u != "" {
		return u
	}
	return "https://open.spotify.com/playlist/" + id
}
