package i18n

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateKorean(t *testing.T) {
	ctx := initLang(t, "ko")

	got := T(ctx, "NoSession")
	if got != "진행 중인 면접이 없습니다." {
		t.Errorf("T(NoSession) = %q", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NoSession")
	if got != "No interview is in progress." {
		t.Errorf("T(NoSession) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "ProblemsAvailable", 1); got != "1 problem available." {
		t.Errorf("Tp(ProblemsAvailable, 1) = %q", got)
	}
	if got := Tp(ctx, "ProblemsAvailable", 5); got != "5 problems available." {
		t.Errorf("Tp(ProblemsAvailable, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ProblemNotFound", map[string]any{"ID": "2025-1"})
	if got != "Problem not found: 2025-1" {
		t.Errorf("Td(ProblemNotFound) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestPhrasebook(t *testing.T) {
	initLang(t, "ko")
	p := NewPhrasebook("ko")

	welcome := p.Welcome("첫 질문?")
	if !strings.HasPrefix(welcome, "반갑습니다.") || !strings.HasSuffix(welcome, "\n\n첫 질문?") {
		t.Errorf("Welcome = %q", welcome)
	}
	next := p.NextQuestion("둘째 질문?")
	if !strings.HasPrefix(next, "다음 질문") || !strings.HasSuffix(next, "둘째 질문?") {
		t.Errorf("NextQuestion = %q", next)
	}
	failed := p.TranscriptionFailed(errors.New("timeout"))
	if failed != "[음성 인식 실패: timeout]" {
		t.Errorf("TranscriptionFailed = %q", failed)
	}
}
