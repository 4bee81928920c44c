package memory

import (
	"encoding/json"
	"strings"

	"github.com/sagechat/sage/internal/models"
)

// Extraction is the structured payload expected inside a (possibly verbose)
// extraction response.
type Extraction struct {
	Facts       []models.PersonalFact `json:"-"`
	Preferences map[string]string     `json:"preferences"`
}

type rawExtraction struct {
	Facts       json.RawMessage   `json:"facts"`
	Preferences map[string]string `json:"preferences"`
}

type rawFact struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ParseExtraction locates the first balanced JSON object in the model's
// reply and strict-parses it into facts and preferences. The reply is
// untrusted text: any failure returns ok=false and the caller skips the
// update. Facts may be objects with content/source or bare strings.
func ParseExtraction(reply string) (*Extraction, bool) {
	obj := firstJSONObject(reply)
	if obj == "" {
		return nil, false
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, false
	}

	out := &Extraction{Preferences: map[string]string{}}
	for k, v := range raw.Preferences {
		if strings.TrimSpace(k) != "" {
			out.Preferences[k] = v
		}
	}

	if len(raw.Facts) > 0 {
		var objs []rawFact
		if err := json.Unmarshal(raw.Facts, &objs); err == nil {
			for _, f := range objs {
				if strings.TrimSpace(f.Content) == "" {
					continue
				}
				source := models.FactSource(f.Source)
				if !source.IsValid() {
					source = models.FactSourceObservation
				}
				out.Facts = append(out.Facts, models.PersonalFact{Content: f.Content, Source: source})
			}
		} else {
			var strs []string
			if err := json.Unmarshal(raw.Facts, &strs); err != nil {
				return nil, false
			}
			for _, s := range strs {
				if strings.TrimSpace(s) == "" {
					continue
				}
				out.Facts = append(out.Facts, models.PersonalFact{Content: s, Source: models.FactSourceObservation})
			}
		}
	}

	return out, true
}

// firstJSONObject returns the first balanced {...} block in s, tracking
// string literals and escapes so braces inside values do not confuse the
// depth count. Returns "" when no balanced object exists.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
