package i18n

var japaneseMessages = map[string]string{
	"editorial_playlist_blocked": "これはSpotify公式の編集プレイリストのようです (%s)。地域制限のためアプリ資格情報では取得できません。" +
		"ご自身のプレイリストに曲をコピーしてから、そのURLで再度お試しください。 / This looks like a Spotify editorial " +
		"playlist. Please copy the tracks into a playlist of your own and retry with that URL.",

	"playlist_not_found_any_market": "設定されたどのマーケット (%s) でもプレイリストが見つかりませんでした。非公開か削除済みの可能性があります。",
	"upload_not_xml":                "Rekordbox コレクションの XML ファイルをアップロードしてください。",
	"upload_empty":                  "空のファイルです。",
	"upload_too_large":              "ファイルが大きすぎます（上限 %d バイト）。",
}
