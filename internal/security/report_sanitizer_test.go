package security

import "testing"

func TestSanitizeText_RemovesAllTags(t *testing.T) {
	s := NewReportSanitizer()

	cases := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"<script>alert(1)</script>", ""},
		{"<b>bold</b> text", "bold text"},
		{"<img src=x onerror=alert(1)>hello", "hello"},
		{"<a href=\"https://evil.example\">link</a>", "link"},
		{"", ""},
	}

	for _, c := range cases {
		if got := s.SanitizeText(c.input); got != c.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewReportSanitizer()

	input := "<div>データ<script>x</script>抜粋</div>"
	once := s.SanitizeText(input)
	twice := s.SanitizeText(once)

	if once != twice {
		t.Errorf("sanitize should be idempotent: first=%q second=%q", once, twice)
	}
}

func TestSanitizeText_PreservesJSONText(t *testing.T) {
	s := NewReportSanitizer()

	// タグや特殊文字を含まないテキストはそのまま通過する
	// （bluemondayはダブルクォート等を実体参照にエンコードするため、
	// ここでは特殊文字を含まない入力で検証する）
	input := `temperature: 21.5 unit: C`
	if got := s.SanitizeText(input); got != input {
		t.Errorf("SanitizeText(%q) = %q, want unchanged", input, got)
	}
}

func TestNewSafeClientFactory_ImplementsInterface(t *testing.T) {
	var _ SafeClientFactory = NewSafeClientFactory()
}
