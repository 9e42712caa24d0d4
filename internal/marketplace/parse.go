package marketplace

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// appData mirrors the JSON blob the platform embeds on every page in the
// body tag's data-app-data attribute.
type appData struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"userName"`
	Locale    string `json:"locale"`
	CSRFToken string `json:"csrf-token"`
}

var errNoAppData = errors.New("page has no app data")

// parseAppData extracts the embedded session blob from a page.
func parseAppData(r io.Reader) (appData, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return appData{}, err
	}
	node := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "body" && attr(n, "data-app-data") != ""
	})
	if node == nil {
		return appData{}, errNoAppData
	}

	var data appData
	if err := json.Unmarshal([]byte(attr(node, "data-app-data")), &data); err != nil {
		return appData{}, err
	}
	return data, nil
}

// parseChatLocale reads the conversation page's locale. The platform renders
// chat pages in the buyer's interface language, which is the most reliable
// signal for choosing reply language before the buyer has written anything.
func parseChatLocale(r io.Reader) (string, error) {
	data, err := parseAppData(r)
	if err != nil {
		return "", err
	}
	switch data.Locale {
	case "ru", "en", "uk":
		return data.Locale, nil
	default:
		return "", nil
	}
}

// parseSellerRating reads the public profile rating widget.
func parseSellerRating(r io.Reader) (Rating, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Rating{}, err
	}

	var rating Rating
	if node := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "data-rating") != ""
	}); node != nil {
		rating.Stars, _ = strconv.ParseFloat(attr(node, "data-rating"), 64)
	}
	if node := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, "rating-full-count")
	}); node != nil {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, textContent(node))
		rating.Reviews, _ = strconv.Atoi(digits)
	}
	return rating, nil
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
