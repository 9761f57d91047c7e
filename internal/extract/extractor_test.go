package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/tutor/internal/models"
	"github.com/xuri/excelize/v2"
)

func pageTexts(pages []models.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = fmt.Sprintf("%d:%s", p.Number, p.Text)
	}
	return out
}

func assertPages(t *testing.T, got []models.Page, want ...string) {
	t.Helper()
	g := pageTexts(got)
	if strings.Join(g, "|") != strings.Join(want, "|") {
		t.Errorf("pages = %q, want %q", g, want)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".pdf", true},
		{".PDF", true},
		{".docx", true},
		{".txt", true},
		{".go", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.ext); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:Hello world\nLine 2")
}

func TestExtractBytes_plainPaging(t *testing.T) {
	var lines []string
	for i := 1; i <= 120; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte(strings.Join(lines, "\n")), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 pages of %d lines, got %d", linesPerPage, len(got))
	}
	if !strings.HasPrefix(got[1].Text, "line 51\n") || got[1].Number != 2 {
		t.Errorf("page 2 = %d %q", got[1].Number, got[1].Text[:10])
	}
	if !strings.HasSuffix(got[2].Text, "line 120") {
		t.Errorf("last page should end with line 120")
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".rst")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:hello�world")
}

func TestExtractBytes_blankTextHasNoPages(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("  \n\n\t "), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no pages, got %v", got)
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("raw content"), ".xyz"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	if _, err := f.NewSheet("Grades"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Grades", "A1", "A+")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:Title\nValue 1\tValue 2", "2:A+")
}

func TestExtract_plainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	assertPages(t, got, "1:File content")
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

// docxWithParagraphs returns a .docx zip whose body has one <w:p> per entry.
func docxWithParagraphs(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p w:rsidR="00AB12"><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	got, err := NewExtractor().ExtractBytes(docxWithParagraphs("Searchable docx content"), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:Searchable docx content")
}

func TestExtractBytes_docxPaging(t *testing.T) {
	var paras []string
	for i := 1; i <= 12; i++ {
		paras = append(paras, fmt.Sprintf("p%d", i))
	}
	paras = append(paras[:5], append([]string{"  "}, paras[5:]...)...)
	got, err := NewExtractor().ExtractBytes(docxWithParagraphs(paras...), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:p1\np2\np3\np4\np5\np6\np7\np8\np9\np10", "2:p11\np12")
}

func TestExtractBytes_docxContentTypes(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`},
		{"content type first", `<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := zip.NewWriter(&buf)
			ct, _ := w.Create("[Content_Types].xml")
			_, _ = ct.Write([]byte(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + tt.override + `</Types>`))
			fw, _ := w.Create("word/document2.xml")
			_, _ = fw.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>From document2</w:t></w:r></w:p></w:body></w:document>`))
			_ = w.Close()

			got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			assertPages(t, got, "1:From document2")
		})
	}
}

func TestExtractBytes_docxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("docProps/core.xml")
	_ = w.Close()
	if _, err := NewExtractor().ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error when word/document.xml is missing")
	}
}

func pptxWithSlides(slides map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, text := range slides {
		fw, _ := w.Create(name)
		_, _ = fw.Write([]byte(`<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`))
	}
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_pptxSlideOrder(t *testing.T) {
	content := pptxWithSlides(map[string]string{
		"ppt/slides/slide10.xml":            "Tenth",
		"ppt/slides/slide2.xml":             "Second",
		"ppt/slides/slide1.xml":             "First",
		"ppt/slides/_rels/slide1.xml.rels":  "ignored",
		"ppt/slideLayouts/slideLayout1.xml": "ignored",
	})
	got, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:First", "2:Second", "10:Tenth")
}

func TestExtractBytes_pptxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".pptx"); err == nil {
		t.Error("expected error for invalid pptx")
	}
}

// openDocument returns a zip with content.xml set to contentXML.
func openDocument(contentXML string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("content.xml")
	_, _ = fw.Write([]byte(contentXML))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_odp(t *testing.T) {
	contentXML := `<office:document><office:body>` +
		`<draw:page draw:name="1"><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page>` +
		`<draw:page draw:name="2"><draw:text-box><text:p><text:span>Spanned</text:span></text:p></draw:text-box></draw:page>` +
		`</office:body></office:document>`
	got, err := NewExtractor().ExtractBytes(openDocument(contentXML), ".odp")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:Body text Slide title", "2:Spanned")
}

func TestExtractBytes_ods(t *testing.T) {
	contentXML := `<office:document><office:body>` +
		`<table:table table:name="A"><table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></table:table-row></table:table>` +
		`<table:table table:name="B"><table:table-row><table:table-cell><text:p>Other sheet</text:p></table:table-cell></table:table-row></table:table>` +
		`</office:body></office:document>`
	got, err := NewExtractor().ExtractBytes(openDocument(contentXML), ".ods")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	assertPages(t, got, "1:Cell A Cell B", "2:Other sheet")
}

func TestExtractBytes_openDocumentContentNotFound(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("other.xml")
	_ = w.Close()
	for _, ext := range []string{".odp", ".ods"} {
		if _, err := NewExtractor().ExtractBytes(buf.Bytes(), ext); err == nil {
			t.Errorf("%s: expected error when content.xml missing", ext)
		}
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-garbage"), ".pdf"); err == nil {
		t.Error("expected error for malformed pdf")
	}
}

func TestTrimTrailingBlank(t *testing.T) {
	tests := []struct {
		row  []string
		want string
	}{
		{[]string{"a", "b"}, "a|b"},
		{[]string{"a", "", " "}, "a"},
		{[]string{"", "b", ""}, "|b"},
		{[]string{"", ""}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := strings.Join(trimTrailingBlank(tt.row), "|"); got != tt.want {
			t.Errorf("trimTrailingBlank(%q) = %q, want %q", tt.row, got, tt.want)
		}
	}
}
