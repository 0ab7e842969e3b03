package contract

import (
	"errors"
	"testing"
)

// UT-CODEC-01: 合法行解析
func TestParseRecord(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Record
	}{
		{"基本", "42. Ford", Record{Number: 42, Text: "Ford"}},
		{"首个分隔符切分", "1. Mr. Smith. Jr", Record{Number: 1, Text: "Mr. Smith. Jr"}},
		{"空文本", "5. ", Record{Number: 5, Text: ""}},
		{"负数", "-3. x", Record{Number: -3, Text: "x"}},
		{"文本含空格", "7. Apple is good", Record{Number: 7, Text: "Apple is good"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseRecord(c.in)
			if err != nil {
				t.Fatalf("解析失败: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %+v want %+v", got, c.want)
			}
		})
	}
}

// UT-CODEC-02: 非法行返回 ErrParse
func TestParseRecordInvalid(t *testing.T) {
	for _, in := range []string{"not-a-record", "abc. x", "12.x", ". x", "", "1 . x"} {
		_, err := ParseRecord(in)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("%q: 期望 ErrParse, got %v", in, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Line != in {
			t.Fatalf("%q: 期望 *ParseError 携带原始行, got %v", in, err)
		}
	}
}

// UT-CODEC-03: 编码与解析互逆
func TestFormatRecordRoundTrip(t *testing.T) {
	lines := []string{"42. Ford", "1. Mr. Smith", "5. ", "-9. z"}
	for _, l := range lines {
		r, err := ParseRecord(l)
		if err != nil {
			t.Fatalf("parse %q: %v", l, err)
		}
		if got := FormatRecord(r); got != l {
			t.Fatalf("format: got %q want %q", got, l)
		}
	}
	buf := AppendRecord([]byte("x:"), Record{Number: 3, Text: "A"})
	if string(buf) != "x:3. A" {
		t.Fatalf("append: %q", buf)
	}
}

// UT-CODEC-04: 全序
func TestCompare(t *testing.T) {
	a := Record{Number: 7, Text: "Audi"}
	b := Record{Number: 7, Text: "BMW"}
	c := Record{Number: 42, Text: "BMW"}
	if !Less(a, b) || !Less(b, c) || Less(c, b) {
		t.Fatalf("顺序错误")
	}
	if Compare(b, b) != 0 {
		t.Fatalf("自反性错误")
	}
	if Compare(Record{Number: 100, Text: "A"}, Record{Number: 9, Text: "A"}) <= 0 {
		t.Fatalf("Number 应按数值比较")
	}
}

func TestResourceErrorUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := &ResourceError{Op: "write", Path: "/tmp/x", Err: base}
	if !errors.Is(err, ErrResource) || !errors.Is(err, base) {
		t.Fatalf("应同时匹配 ErrResource 与底层错误")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"a\\b\\c":     "a/b/c",
		"./x/../y":    "y",
		"":            ".",
		"/tmp//in.txt": "/tmp/in.txt",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Fatalf("%q -> %q, 期望 %q", in, got, want)
		}
	}
}
