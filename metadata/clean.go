package metadata

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// Cleaner strips Clone Hero's rich-text markup from metadata fields.
// Charters style song names with color tags and the game writes them to
// the now-playing export verbatim.
type Cleaner struct {
	colorExpr *regexp2.Regexp
}

func NewCleaner() *Cleaner {
	return &Cleaner{
		colorExpr: regexp2.MustCompile(`(?i)<color=[^>]*>(?<inner>.*?)</color>`, 0),
	}
}

// Strip removes color tags, keeping their inner text. Tags can nest, so
// replacement repeats until the text is stable.
func (c *Cleaner) Strip(text string) string {
	for range 8 {
		replaced, err := c.colorExpr.Replace(text, "${inner}", -1, -1)
		if err != nil || replaced == text {
			break
		}
		text = replaced
	}
	return strings.TrimSpace(text)
}
