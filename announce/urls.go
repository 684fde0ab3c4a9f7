package announce

import (
	"net/url"
	"strings"

	"github.com/fretwork/herald/metadata"
)

var cleaner = metadata.NewCleaner()

// searchLink renders the "find this chart" field value: a web search
// link plus a client deep link, on separate lines. Both drop fields
// that are unknown rather than encoding empty parameters.
func searchLink(title, artist, charter string) string {
	charter = cleaner.Strip(charter)

	var lines []string
	if web := enchorURL(title, artist, charter); web != "" {
		lines = append(lines, "[Enchor]("+web+")")
	}
	if deep := bridgeURL(title, artist, charter); deep != "" {
		lines = append(lines, "`"+deep+"`")
	}
	return strings.Join(lines, "\n")
}

// enchorURL builds the chart search URL. The site's search is
// case-insensitive but canonicalizes to lowercase.
func enchorURL(title, artist, charter string) string {
	v := url.Values{}
	if title != "" {
		v.Set("name", strings.ToLower(title))
	}
	if artist != "" {
		v.Set("artist", strings.ToLower(artist))
	}
	if charter != "" {
		v.Set("charter", strings.ToLower(charter))
	}
	if len(v) == 0 {
		return ""
	}
	return "https://www.enchor.us/?" + v.Encode()
}

// bridgeURL builds the chbridge:// deep link. Unlike the web URL it
// preserves the original casing so the client can match exactly.
func bridgeURL(title, artist, charter string) string {
	v := url.Values{}
	if title != "" {
		v.Set("name", title)
	}
	if artist != "" {
		v.Set("artist", artist)
	}
	if charter != "" {
		v.Set("charter", charter)
	}
	if len(v) == 0 {
		return ""
	}
	return "chbridge://search?" + v.Encode()
}
