package app

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

/********** alias registries (single source of truth) **********/

var hostawayAliases = map[string][]string{
	"type":      {"type", "reviewType"},
	"status":    {"status"},
	"public":    {"publicReview", "public_review"},
	"private":   {"privateReview", "private_review"},
	"submitted": {"submittedAt", "submitted_at"},
	"guest":     {"guestName", "guest_name"},
	"listing":   {"listingName", "listing_name", "listing.name"},
	"channel":   {"channel", "channelName"},
	"created":   {"createdAt"},
	"updated":   {"updatedAt"},
}

var placesAliases = map[string][]string{
	"text":     {"text", "original_text"},
	"author":   {"author_name", "author.name"},
	"photo":    {"profile_photo_url"},
	"relative": {"relative_time_description"},
	"place":    {"place_id"},
	"place_nm": {"place_name"},
}

const (
	defaultGuestName    = "Anonymous Guest"
	placesGuestName     = "Anonymous"
	defaultPropertyName = "Unknown Property"
	placesPropertyName  = "Google Review"
	defaultChannel      = "Airbnb"
	placesChannel       = "Google"

	// places ratings are 1–5 stars
	placesScale = 2.0

	// PlacesIDPrefix marks ids minted for places reviews, which carry none upstream.
	PlacesIDPrefix = "google_"
)

/********** normalizer registry **********/

// Normalizer turns one raw provider record into a CanonicalReview. It never fails:
// missing or malformed fields fall back to defaults.
type Normalizer interface {
	Normalize(raw domain.RawReview) domain.CanonicalReview
}

type NormalizerFunc func(raw domain.RawReview) domain.CanonicalReview

func (f NormalizerFunc) Normalize(raw domain.RawReview) domain.CanonicalReview { return f(raw) }

var normalizers = map[domain.Source]Normalizer{
	domain.SourceHostaway: NormalizerFunc(normalizeHostaway),
	domain.SourcePlaces:   NormalizerFunc(normalizePlaces),
}

// NormalizerFor returns the strategy for src; unknown or empty tags use Hostaway.
func NormalizerFor(src domain.Source) Normalizer {
	if n, ok := normalizers[src]; ok {
		return n
	}
	return normalizers[domain.SourceHostaway]
}

// SourceForID infers the source of an id sent without a provider. Only the places
// normalizer mints PlacesIDPrefix ids; everything else belongs to Hostaway.
func SourceForID(id domain.ReviewID) domain.Source {
	if !id.Numeric() && strings.HasPrefix(id.String(), PlacesIDPrefix) {
		return domain.SourcePlaces
	}
	return domain.SourceHostaway
}

func NormalizeReview(raw domain.RawReview, src domain.Source) domain.CanonicalReview {
	return NormalizerFor(src).Normalize(raw)
}

// NormalizeReviews maps 1:1 and keeps order.
func NormalizeReviews(raws []domain.RawReview, src domain.Source) []domain.CanonicalReview {
	n := NormalizerFor(src)
	out := make([]domain.CanonicalReview, len(raws))
	for i, r := range raws {
		out[i] = n.Normalize(r)
	}
	return out
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); strings.TrimSpace(s) != "" {
			return &s
		}
	}
	return nil
}

func aliasOr(m map[string]any, aliases map[string][]string, key, def string) string {
	if s := firstNonEmptyAlias(m, aliases, key); s != nil {
		return *s
	}
	return def
}

// getFloatFlexible: finite number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		var f float64
		switch v := lookupAny(m, k).(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			p, err := strconv.ParseFloat(s, 64)
			if err != nil {
				continue
			}
			f = p
		default:
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return &f
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// reviewIDFrom keeps the id's JSON kind: numbers stay numeric, strings stay strings.
func reviewIDFrom(m map[string]any, path string) domain.ReviewID {
	switch v := lookupAny(m, path).(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return domain.NumericID(int64(v))
		}
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return domain.StringID(strconv.FormatFloat(v, 'f', -1, 64))
		}
	case int:
		return domain.NumericID(int64(v))
	case int64:
		return domain.NumericID(v)
	case string:
		return domain.StringID(v)
	}
	return domain.ReviewID{}
}

// categoryRatings reads [{category, rating}] entries, skipping ones without a usable rating.
func categoryRatings(m map[string]any, path string) []domain.CategoryRating {
	out := []domain.CategoryRating{}
	raw, ok := lookupAny(m, path).([]any)
	if !ok {
		return out
	}
	for _, it := range raw {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		r := getFloatFlexible(obj, "rating", "value")
		if r == nil {
			continue
		}
		out = append(out, domain.CategoryRating{Category: lookupStr(obj, "category"), Rating: *r})
	}
	return out
}

func clampRating(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

func meanRating(cs []domain.CategoryRating) *float64 {
	if len(cs) == 0 {
		return nil
	}
	sum := 0.0
	for _, c := range cs {
		sum += c.Rating
	}
	m := sum / float64(len(cs))
	return &m
}

func reviewType(s string) domain.ReviewType {
	switch domain.ReviewType(strings.ToLower(strings.TrimSpace(s))) {
	case domain.HostToGuest:
		return domain.HostToGuest
	}
	return domain.GuestToHost
}

/********** hostaway mapper **********/

func normalizeHostaway(r domain.RawReview) domain.CanonicalReview {
	cats := categoryRatings(r, "reviewCategory")

	// Explicit overall first; otherwise the unweighted category mean; otherwise none.
	rating := getFloatFlexible(r, "rating")
	if rating == nil {
		rating = meanRating(cats)
	}
	if rating != nil {
		v := round2(clampRating(*rating))
		rating = &v
	}

	submitted := aliasOr(r, hostawayAliases, "submitted", "")

	return domain.CanonicalReview{
		ID:              reviewIDFrom(r, "id"),
		Source:          domain.SourceHostaway,
		ReviewType:      reviewType(aliasOr(r, hostawayAliases, "type", "")),
		Status:          aliasOr(r, hostawayAliases, "status", domain.StatusPublished),
		OverallRating:   rating,
		BodyText:        aliasOr(r, hostawayAliases, "public", aliasOr(r, hostawayAliases, "private", "")),
		CategoryRatings: cats,
		SubmittedAt:     submitted,
		GuestName:       aliasOr(r, hostawayAliases, "guest", defaultGuestName),
		PropertyName:    aliasOr(r, hostawayAliases, "listing", defaultPropertyName),
		ListingID:       firstInt64Flexible(r, "listingId", "listingMapId"),
		ReservationID:   firstInt64Flexible(r, "reservationId"),
		Channel:         aliasOr(r, hostawayAliases, "channel", defaultChannel),
		CreatedAt:       aliasOr(r, hostawayAliases, "created", submitted),
		UpdatedAt:       aliasOr(r, hostawayAliases, "updated", submitted),
	}
}

/********** places mapper **********/

func normalizePlaces(r domain.RawReview) domain.CanonicalReview {
	out := domain.CanonicalReview{
		Source:                  domain.SourcePlaces,
		ReviewType:              domain.GuestToHost,
		Status:                  domain.StatusPublished,
		BodyText:                aliasOr(r, placesAliases, "text", ""),
		CategoryRatings:         []domain.CategoryRating{},
		GuestName:               aliasOr(r, placesAliases, "author", placesGuestName),
		PropertyName:            aliasOr(r, placesAliases, "place_nm", placesPropertyName),
		Channel:                 placesChannel,
		ProfilePhotoURL:         aliasOr(r, placesAliases, "photo", ""),
		RelativeTimeDescription: aliasOr(r, placesAliases, "relative", ""),
		PlaceID:                 aliasOr(r, placesAliases, "place", ""),
	}

	if stars := getFloatFlexible(r, "rating"); stars != nil {
		v := round2(clampRating(*stars * placesScale))
		out.OverallRating = &v
		out.CategoryRatings = append(out.CategoryRatings, domain.CategoryRating{Category: "overall", Rating: v})
	}

	// Places has no review id; the submission time stands in for one.
	if ts := firstInt64Flexible(r, "time"); ts != nil {
		out.ID = domain.StringID(PlacesIDPrefix + strconv.FormatInt(*ts, 10))
		out.SubmittedAt = time.Unix(*ts, 0).UTC().Format("2006-01-02T15:04:05.000Z")
	} else {
		sum := sha1.Sum([]byte(out.GuestName + "|" + out.BodyText))
		out.ID = domain.StringID(PlacesIDPrefix + hex.EncodeToString(sum[:8]))
	}
	out.CreatedAt = out.SubmittedAt
	out.UpdatedAt = out.SubmittedAt
	return out
}
