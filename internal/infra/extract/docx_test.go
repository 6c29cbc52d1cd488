package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDocxText(t *testing.T) {
	t.Run("extracts paragraph runs in order", func(t *testing.T) {
		doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
		got, err := DocxText(buildDocx(t, doc))
		if err != nil {
			t.Fatal(err)
		}
		want := "First paragraph.\nSecond paragraph."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("missing document.xml errors", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, _ := zw.Create("word/other.xml")
		_, _ = w.Write([]byte("<x/>"))
		_ = zw.Close()

		_, err := DocxText(buf.Bytes())
		if err == nil || !strings.Contains(err.Error(), "document.xml") {
			t.Errorf("err = %v, want document.xml not found", err)
		}
	})

	t.Run("non-zip input errors", func(t *testing.T) {
		if _, err := DocxText([]byte("not a zip")); err == nil {
			t.Errorf("want error for non-zip input")
		}
	})
}
