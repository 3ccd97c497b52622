package message

import "testing"

func TestPercentEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"hello",
		"hello world",
		"a/b?c=d",
		"100% sure",
		"日本語",
	}
	for _, in := range cases {
		enc := PercentEncode(in)
		if got := PercentDecode(enc); got != in {
			t.Fatalf("round trip %q: encoded %q, decoded back %q", in, enc, got)
		}
	}
}

func TestPercentEncodeLeavesUnreservedUntouched(t *testing.T) {
	in := "abcXYZ019-._~"
	if got := PercentEncode(in); got != in {
		t.Fatalf("unreserved chars must pass through unescaped, got %q", got)
	}
}

func TestPercentEncodeUppercasesHexEscapes(t *testing.T) {
	got := PercentEncode(" ")
	if got != "%20" {
		t.Fatalf("want %%20, got %q", got)
	}
	if got := PercentEncode("/"); got != "%2F" {
		t.Fatalf("want %%2F, got %q", got)
	}
}

func TestPercentDecodePlusIsSpace(t *testing.T) {
	if got := PercentDecode("a+b"); got != "a b" {
		t.Fatalf("want %q, got %q", "a b", got)
	}
}

func TestPercentDecodeMalformedEscapePassesThroughLiterally(t *testing.T) {
	in := "100%zz"
	if got := PercentDecode(in); got != in {
		t.Fatalf("malformed escape should pass through unchanged, got %q", got)
	}
}

func TestExtractQueryParamsSplitsAndDecodes(t *testing.T) {
	path, params := ExtractQueryParams("/search?q=a+b&empty&name=%E2%9C%93")
	if path != "/search" {
		t.Fatalf("want base path /search, got %q", path)
	}
	if params["q"] != "a b" {
		t.Fatalf("want q=%q, got %q", "a b", params["q"])
	}
	if v, ok := params["empty"]; !ok || v != "" {
		t.Fatalf("want empty key with empty value, got %q (ok=%v)", v, ok)
	}
	if params["name"] != "✓" {
		t.Fatalf("want decoded checkmark, got %q", params["name"])
	}
}

func TestExtractQueryParamsNoQueryReturnsNilMap(t *testing.T) {
	path, params := ExtractQueryParams("/no-query")
	if path != "/no-query" {
		t.Fatalf("want path unchanged, got %q", path)
	}
	if params != nil {
		t.Fatalf("want nil params map when there is no '?', got %v", params)
	}
}
