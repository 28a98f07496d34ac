package extract

import "strings"

// blockedScanBytes bounds how much body text the gate inspects. Interstitial
// pages put their message up front; scanning further only invites false
// positives from footers.
const blockedScanBytes = 2048

// Interstitial markers in English and Japanese. Kept specific on purpose:
// single generic words ("cookie") appear on ordinary pages too.
var blockedKeywords = []string{
	"access denied",
	"captcha",
	"verify you are human",
	"verify you're human",
	"unusual traffic",
	"are you a robot",
	"bot detected",
	"enable javascript to continue",
	"javascript is disabled",
	"your browser is not supported",
	"アクセスが拒否されました",
	"ロボットではありません",
	"通常と異なるトラフィック",
	"javascriptを有効に",
	"お使いのブラウザはサポートされていません",
}

// IsBlockedPage reports whether a page title plus the head of its body text
// look like a consent, CAPTCHA, or bot-check interstitial rather than
// playlist content.
func IsBlockedPage(title, body string) bool {
	if len(body) > blockedScanBytes {
		body = body[:blockedScanBytes]
	}
	haystack := strings.ToLower(title + "\n" + body)
	for _, kw := range blockedKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
