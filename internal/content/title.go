package content

import (
	"strings"

	"golang.org/x/net/html"
)

// PageTitle returns the document title, falling back to og:title.
func PageTitle(doc string) string {
	if doc == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(doc))
	var ogTitle string
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ogTitle
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = true
			case "meta":
				if ogTitle == "" && attr(tok, "property") == "og:title" {
					ogTitle = collapse(attr(tok, "content"))
				}
			case "body":
				if ogTitle != "" {
					return ogTitle
				}
			}
		case html.TextToken:
			if inTitle {
				if t := collapse(string(z.Text())); t != "" {
					return t
				}
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data == "title" {
				inTitle = false
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
