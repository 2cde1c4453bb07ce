package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/nhle/shodjinn/internal/theme"
)

const bannerArt = `
       .     ✦
      / \~~~/ \
     (  °   °  )
      \  ~~~  /
     / '-----' \
    | SHODJINN |
    |   %-6s |
`

// Banner writes the start-up banner for version.
func Banner(w io.Writer, version string) {
	art := fmt.Sprintf(bannerArt, truncateVersion(version))
	fmt.Fprintln(w, theme.BannerStyle.Render(strings.TrimPrefix(art, "\n")))
}

func truncateVersion(v string) string {
	if len(v) > 6 {
		return v[:6]
	}
	return v
}
