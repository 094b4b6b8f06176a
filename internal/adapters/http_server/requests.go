package httpserver

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// validationError turns the first validator failure into a domain error.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return domain.Invalid(fe.Field(), reason)
	}
	return domain.Invalid("", err.Error())
}

type listParams struct {
	ListingID    string `query:"listingId" validate:"omitempty,numeric"`
	StartDate    string `query:"startDate" validate:"max=40"`
	EndDate      string `query:"endDate" validate:"max=40"`
	Status       string `query:"status" validate:"omitempty,max=32,printascii"`
	IncludeStats string `query:"includeStats" validate:"omitempty,oneof=true false 1 0"`
	Channel      string `query:"channel" validate:"max=64"`
	Property     string `query:"property" validate:"max=256"`
	MinRating    string `query:"minRating" validate:"omitempty,numeric"`
	Approved     string `query:"approved" validate:"omitempty,oneof=true false"`
	SortBy       string `query:"sortBy" validate:"omitempty,oneof=date rating"`
}

func readListParams(q url.Values) listParams {
	return listParams{
		ListingID:    strings.TrimSpace(q.Get("listingId")),
		StartDate:    strings.TrimSpace(q.Get("startDate")),
		EndDate:      strings.TrimSpace(q.Get("endDate")),
		Status:       strings.TrimSpace(q.Get("status")),
		IncludeStats: strings.TrimSpace(q.Get("includeStats")),
		Channel:      strings.TrimSpace(q.Get("channel")),
		Property:     strings.TrimSpace(q.Get("property")),
		MinRating:    strings.TrimSpace(q.Get("minRating")),
		Approved:     strings.TrimSpace(q.Get("approved")),
		SortBy:       strings.TrimSpace(q.Get("sortBy")),
	}
}

// filter builds the post-normalization filter shared by the list and public views.
func (p listParams) filter() (app.ReviewFilter, error) {
	f := app.ReviewFilter{Channel: p.Channel, Property: p.Property, SortBy: p.SortBy}

	if p.ListingID != "" {
		id, err := strconv.ParseInt(p.ListingID, 10, 64)
		if err != nil {
			return f, domain.Invalid("listingId", "must be an integer")
		}
		f.ListingID = &id
	}
	if p.StartDate != "" {
		t, err := app.ParseDateParam(p.StartDate, false)
		if err != nil {
			return f, domain.Invalid("startDate", "must be YYYY-MM-DD or RFC3339")
		}
		f.Start = &t
	}
	if p.EndDate != "" {
		t, err := app.ParseDateParam(p.EndDate, true)
		if err != nil {
			return f, domain.Invalid("endDate", "must be YYYY-MM-DD or RFC3339")
		}
		f.End = &t
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return f, domain.Invalid("endDate", "must not be before startDate")
	}
	if p.MinRating != "" {
		v, err := strconv.ParseFloat(p.MinRating, 64)
		if err != nil || v < 0 || v > 10 {
			return f, domain.Invalid("minRating", "must be a number between 0 and 10")
		}
		f.MinRating = &v
	}
	if p.Approved != "" {
		b := p.Approved == "true"
		f.Approved = &b
	}
	return f, nil
}

func (p listParams) listQuery(src domain.Source) (app.ListQuery, error) {
	if err := validate.Struct(p); err != nil {
		return app.ListQuery{}, validationError(err)
	}
	f, err := p.filter()
	if err != nil {
		return app.ListQuery{}, err
	}

	status := p.Status
	if status == "" {
		status = domain.StatusPublished
	}
	f.Status = status
	upstreamStatus := status
	if status == app.StatusAny {
		upstreamStatus = ""
	}

	return app.ListQuery{
		Source: src,
		Upstream: domain.ProviderQuery{
			ListingID: p.ListingID,
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
			Status:    upstreamStatus,
		},
		Filter:       f,
		IncludeStats: p.IncludeStats != "false" && p.IncludeStats != "0",
	}, nil
}

type approveBody struct {
	ReviewIDs json.RawMessage `json:"reviewIds"`
	Approved  *bool           `json:"approved"`
	Provider  string          `json:"provider" validate:"omitempty,max=32"`
}

var errNotArray = domain.Invalid("", "reviewIds must be an array")

// readApproveRequest decodes and checks the approve body without touching any state.
func readApproveRequest(w http.ResponseWriter, r *http.Request) (app.ApprovalRequest, error) {
	var body approveBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		return app.ApprovalRequest{}, domain.Invalid("", "request body must be a JSON object")
	}
	if err := validate.Struct(body); err != nil {
		return app.ApprovalRequest{}, validationError(err)
	}

	raw := bytes.TrimSpace(body.ReviewIDs)
	if len(raw) == 0 || raw[0] != '[' {
		return app.ApprovalRequest{}, errNotArray
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return app.ApprovalRequest{}, errNotArray
	}

	ids := make([]domain.ReviewID, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || !(e[0] == '"' || e[0] == '-' || (e[0] >= '0' && e[0] <= '9')) {
			return app.ApprovalRequest{}, domain.Invalid("reviewIds", "must contain only strings or numbers")
		}
		var id domain.ReviewID
		if err := json.Unmarshal(e, &id); err != nil {
			return app.ApprovalRequest{}, domain.Invalid("reviewIds", "must contain only strings or numbers")
		}
		ids = append(ids, id)
	}

	// without a provider the source is inferred per id
	var src domain.Source
	if body.Provider != "" {
		s, err := domain.ParseSource(body.Provider)
		if err != nil {
			return app.ApprovalRequest{}, domain.Invalid("provider", "is not a known provider")
		}
		src = s
	}
	return app.ApprovalRequest{
		Source:   src,
		IDs:      ids,
		Approved: body.Approved != nil && *body.Approved,
	}, nil
}
