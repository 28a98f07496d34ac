package i18n

var englishMessages = map[string]string{
	// The editorial message is deliberately bilingual: the raw API error is
	// useless to end users, and the service's audience spans both languages.
	"editorial_playlist_blocked": "This looks like a Spotify editorial playlist (%s). Editorial playlists are " +
		"often region-locked and cannot be read with app credentials. Please copy the tracks into a playlist " +
		"of your own and retry with that URL. / これはSpotify公式の編集プレイリストのようです。地域制限のため取得できません。" +
		"ご自身のプレイリストに曲をコピーしてから、そのURLで再度お試しください。",

	"playlist_not_found_any_market": "The playlist was not visible in any configured market (%s). It may be private or deleted.",
	"upload_not_xml":                "Please upload a Rekordbox collection XML file.",
	"upload_empty":                  "The uploaded file is empty.",
	"upload_too_large":              "The uploaded file is too large (limit %d bytes).",
}
