// Package extract implements the heuristic extraction strategies: brand
// identification, product extraction, category discovery and pagination.
package extract

import "strings"

// minImageURLLen rejects truncated or data-less image references.
const minImageURLLen = 10

// blockedImageTokens mark UI assets rather than product photography.
var blockedImageTokens = []string{
	"logo",
	"icon",
	"arrow",
	"chevron",
	"placeholder",
	"blank",
	"loading",
	"spinner",
	"social",
	"banner",
}

// IsValidProductImage reports whether url plausibly points at product
// photography. Applied during extraction and again at final dedup.
func IsValidProductImage(url string) bool {
	if len(url) < minImageURLLen {
		return false
	}
	lower := strings.ToLower(url)
	for _, token := range blockedImageTokens {
		if strings.Contains(lower, token) {
			return false
		}
	}
	return true
}
