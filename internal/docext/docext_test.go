package docext

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func memExtractor(t *testing.T, files map[string]string) Extractor {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return NewExtractorWithFS(fs)
}

func TestExtractPlainTextFormats(t *testing.T) {
	extractor := memExtractor(t, map[string]string{
		"/docs/profile.txt": "GPA: 3.8",
		"/docs/notes.md":    "# Achievements",
	})
	for _, path := range []string{"/docs/profile.txt", "/docs/notes.md"} {
		text, err := extractor.Extract(path)
		if err != nil {
			t.Fatalf("extract %s: %v", path, err)
		}
		if text == "" {
			t.Fatalf("extract %s: empty text", path)
		}
	}
}

func TestExtractUnsupportedFormatIsCallerVisible(t *testing.T) {
	extractor := memExtractor(t, map[string]string{"/docs/cv.docx": "binary"})
	_, err := extractor.Extract("/docs/cv.docx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractEnforcesSizeLimit(t *testing.T) {
	extractor := memExtractor(t, map[string]string{"/docs/huge.txt": strings.Repeat("x", 64)})
	extractor.MaxFileBytes = 16
	_, err := extractor.Extract("/docs/huge.txt")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestExtractPDFUsesInjectedReader(t *testing.T) {
	extractor := memExtractor(t, map[string]string{"/docs/cv.pdf": "%PDF-1.4 stub"})
	extractor.pdfText = func(path string) (string, error) { return "pdf body", nil }
	text, err := extractor.Extract("/docs/cv.pdf")
	if err != nil {
		t.Fatalf("extract pdf: %v", err)
	}
	if text != "pdf body" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestScrapeProfileFindsSignals(t *testing.T) {
	text := `Nguyen Van A
GPA: 3.75 on a 4.0 scale
IELTS 7.0, TOEFL: 102, SAT 1450
First prize in the national mathematics olympiad
Volunteer teacher at a community center
Fluent in English and Vietnamese`

	facts := ScrapeProfile(text)
	if facts.GPA != 3.75 {
		t.Fatalf("unexpected gpa: %v", facts.GPA)
	}
	if facts.IELTS != 7.0 || facts.TOEFL != 102 || facts.SAT != 1450 {
		t.Fatalf("unexpected test scores: %+v", facts)
	}
	if len(facts.Achievements) != 1 || !strings.Contains(facts.Achievements[0], "First prize") {
		t.Fatalf("unexpected achievements: %v", facts.Achievements)
	}
	if len(facts.Activities) != 1 {
		t.Fatalf("unexpected activities: %v", facts.Activities)
	}
	if len(facts.Languages) != 1 {
		t.Fatalf("unexpected languages: %v", facts.Languages)
	}
}

func TestScrapeProfileEmptyTextYieldsZeroFacts(t *testing.T) {
	facts := ScrapeProfile("")
	if facts.GPA != 0 || len(facts.Achievements) != 0 {
		t.Fatalf("expected zero facts, got %+v", facts)
	}
}
