package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidProductImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"product photo", "https://example.com/media/aeron-chair.jpg", true},
		{"too short", "/a.jpg", false},
		{"empty", "", false},
		{"logo", "https://example.com/assets/site-logo.png", false},
		{"logo uppercase", "https://example.com/assets/LOGO.png", false},
		{"icon", "https://example.com/icons/cart-icon.svg", false},
		{"arrow", "https://example.com/ui/arrow-left.png", false},
		{"chevron", "https://example.com/ui/chevron-down.svg", false},
		{"placeholder", "https://example.com/img/placeholder.jpg", false},
		{"blank", "https://example.com/img/blank.gif", false},
		{"loading", "https://example.com/img/loading.gif", false},
		{"spinner", "https://example.com/img/spinner.svg", false},
		{"social", "https://example.com/img/social-fb.png", false},
		{"banner", "https://example.com/img/sale-banner.jpg", false},
		{"token inside path", "https://cdn.example.com/logos/brand.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsValidProductImage(tt.url))
		})
	}
}
