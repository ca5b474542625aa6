package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
)

type reportBody struct {
	WasteType enums.WasteType `json:"waste_type" validate:"required,enum"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBodyValidatesEnums(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"waste_type":"glass","quantity":2}`))
	var body reportBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"waste_type":"lava","quantity":2}`))
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["waste_type"] != "is not a supported value" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"waste_type":"glass","quantity":1,"points":99}`))
	var body reportBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := URLParamUUID(req, "orderId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := URLParamUUID(req, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?organic=true&limit=500&category=nope", nil)
	organic, err := ParseQueryBool(req, "organic")
	if err != nil || organic == nil || !*organic {
		t.Fatalf("expected organic=true, got %v (%v)", organic, err)
	}
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
	if _, err := ParseQueryUUID(req, "category"); err == nil {
		t.Fatal("expected uuid error")
	}
	if v, err := ParseQueryUUID(req, "absent"); err != nil || v != nil {
		t.Fatalf("expected nil for absent param, got %v (%v)", v, err)
	}
}

func TestDecodeJSONBodyRejectsTrailingObjects(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"waste_type":"cardboard","quantity":1}{"quantity":2}`))
	var body reportBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := map[string]struct {
		in   string
		max  int
		want string
	}{
		"trims":           {in: "  tomatoes  ", max: 0, want: "tomatoes"},
		"strips controls": {in: "rice\x00\x07 bags", max: 0, want: "rice bags"},
		"rune safe":       {in: "धान की भूसी", max: 3, want: "धान"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := SanitizeString(tc.in, tc.max); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
