package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const maxSlugLength = 100

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, collapses every run of characters outside
// [a-z0-9] into one hyphen and caps the result at 100 characters.
func Slugify(title string) string {
	slug := slugSeparators.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// uniqueSlug returns base, or base with the first free numeric suffix.
// The project identified by exclude does not count as a collision.
func uniqueSlug(ctx context.Context, projects ProjectStore, base string, exclude uuid.UUID) (string, error) {
	taken, err := projects.SlugTaken(ctx, base, exclude)
	if err != nil || !taken {
		return base, err
	}

	for n := 1; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		stem := base
		if len(stem)+len(suffix) > maxSlugLength {
			stem = strings.TrimRight(stem[:maxSlugLength-len(suffix)], "-")
		}
		candidate := stem + suffix

		taken, err := projects.SlugTaken(ctx, candidate, exclude)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}
