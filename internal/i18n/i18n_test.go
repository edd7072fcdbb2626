package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "ErrSessionComplete"); got != "This session has no more questions." {
		t.Errorf("T(ErrSessionComplete) = %q", got)
	}
}

func TestTranslateArabic(t *testing.T) {
	ctx := initLang(t, "ar")

	if got := T(ctx, "ErrCanceled"); got != "تم إلغاء توليد الأسئلة." {
		t.Errorf("T(ErrCanceled) = %q", got)
	}
}

func TestTemplateData(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuestionNofM", map[string]any{"N": 3, "Total": 10})
	if got != "Question 3 of 10" {
		t.Errorf("Td(QuestionNofM) = %q", got)
	}
}

func TestPlural(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsAnswered", 1); got != "1 question answered" {
		t.Errorf("Tp(1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsAnswered", 4); got != "4 questions answered" {
		t.Errorf("Tp(4) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NoSuchKey"); got != "NoSuchKey" {
		t.Errorf("T(NoSuchKey) = %q, want the ID back", got)
	}
}

func TestWithoutLocalizerFallsBackToEnglish(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
	if got := T(context.Background(), "Correct"); got != "Correct!" {
		t.Errorf("T(Correct) = %q", got)
	}
}

func TestMiddlewarePrefersAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ar")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "غير موجود." {
		t.Errorf("localized = %q, want Arabic", got)
	}
}
