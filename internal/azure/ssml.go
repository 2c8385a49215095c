package azure

import (
	"encoding/xml"
	"strings"
)

// BuildSSML renders req as an SSML document. Attribute values and the text
// body are XML-escaped.
func BuildSSML(req Request) string {
	var b strings.Builder

	b.WriteString(`<speak xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="http://www.w3.org/2001/mstts" version="1.0" xml:lang="`)
	escape(&b, req.Language)
	b.WriteString(`"><voice name="`)
	escape(&b, req.Voice)
	b.WriteString(`">`)
	if req.LexiconURL != "" {
		b.WriteString(`<lexicon uri="`)
		escape(&b, req.LexiconURL)
		b.WriteString(`"/>`)
	}
	rate := req.Rate
	if rate == "" {
		rate = "0%"
	}
	b.WriteString(`<prosody rate="`)
	escape(&b, rate)
	b.WriteString(`" pitch="0%">`)
	escape(&b, req.Text)
	b.WriteString(`</prosody></voice></speak>`)

	return b.String()
}

func escape(b *strings.Builder, s string) {
	// strings.Builder writes never fail.
	_ = xml.EscapeText(b, []byte(s))
}
