package service

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
)

// codePrefix is the upper-cased category slug, e.g. GIFT-CARD.
func codePrefix(category catalogdomain.RewardCategory) string {
	prefix := strings.ToUpper(slug.Make(strings.ReplaceAll(string(category), "_", " ")))
	if prefix == "" {
		return "REWARD"
	}
	return prefix
}

// newCode builds a redemption code from the reward category and a ULID.
func newCode(category catalogdomain.RewardCategory) string {
	return codePrefix(category) + "-" + ulid.Make().String()
}
