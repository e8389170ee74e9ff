package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"
)

const maxSlugLen = 60

// GeneratePermlink builds a Hive-style permlink from a prediction title:
// lowercase, hyphen-separated, with a random suffix to keep it unique.
func GeneratePermlink(title string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "prediction"
	}
	return slug + "-" + randomSuffix(6)
}

func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

func randomSuffix(length int) string {
	bytes := make([]byte, (length+1)/2)
	if _, err := rand.Read(bytes); err != nil {
		return "000000"[:length]
	}
	return hex.EncodeToString(bytes)[:length]
}
