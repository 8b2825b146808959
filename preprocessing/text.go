package preprocessing

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
	linkPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

// StripMarkup はMarkdown/HTMLをプレーンテキストに変換する
//
// blackfridayでHTMLにレンダリングしてからタグを取り除き、
// エンティティを元の文字に戻す。URLは削除される。
func StripMarkup(text string) string {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.UseXHTML,
	})
	out := blackfriday.Run([]byte(text),
		blackfriday.WithNoExtensions(),
		blackfriday.WithRenderer(renderer),
	)
	plain := tagPattern.ReplaceAllString(string(out), " ")
	plain = html.UnescapeString(plain)
	plain = linkPattern.ReplaceAllString(plain, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// RemoveDiacritics はNFD分解後に結合文字（unicode.Mn）を取り除く
func RemoveDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Normalize applies the featurizer's normalization steps to one text.
func (o TextFeaturizerOptions) Normalize(text string) string {
	if o.StripMarkup {
		text = StripMarkup(text)
	}
	if o.RemoveDiacritics {
		text = RemoveDiacritics(text)
	}
	if o.Lowercase {
		text = strings.ToLower(text)
	}
	return strings.Join(strings.Fields(text), " ")
}

// Tokenize splits normalized text into words. Punctuation and symbols become
// their own tokens.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(text) {
		var current strings.Builder
		for _, r := range word {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				if current.Len() > 0 {
					tokens = append(tokens, current.String())
					current.Reset()
				}
				tokens = append(tokens, string(r))
				continue
			}
			current.WriteRune(r)
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
		}
	}
	return tokens
}

// wordNgrams returns all word n-grams of length 1..maxLen, each prefixed "w:".
func wordNgrams(tokens []string, maxLen int) []string {
	var grams []string
	for n := 1; n <= maxLen; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, "w:"+strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

// charNgrams returns character n-grams of exactly n runes taken from each
// token wrapped in "<" ">" markers, each prefixed "c:".
// Tokens shorter than n (with markers) yield the whole marked token.
func charNgrams(tokens []string, n int) []string {
	if n <= 0 {
		return nil
	}
	var grams []string
	for _, tok := range tokens {
		marked := []rune("<" + tok + ">")
		if len(marked) <= n {
			grams = append(grams, "c:"+string(marked))
			continue
		}
		for i := 0; i+n <= len(marked); i++ {
			grams = append(grams, "c:"+string(marked[i:i+n]))
		}
	}
	return grams
}
