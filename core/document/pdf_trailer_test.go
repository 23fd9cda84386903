package document

import (
	"fmt"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestTrailerDicts(t *testing.T) {
	t.Run("classic trailers", func(t *testing.T) {
		data := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n" +
			"xref\n0 1\n0000000000 65535 f \n" +
			"trailer\n<< /Size 2 /Root 1 0 R /Encrypt << /V 1 >> >>\nstartxref\n45\n%%EOF\n")
		dicts := trailerDicts(data)
		gt.Number(t, len(dicts)).Equal(1)
		gt.String(t, string(dicts[0])).Equal("<< /Size 2 /Root 1 0 R /Encrypt << /V 1 >> >>")
		gt.Value(t, rawProtection(data)).Equal("encrypted")
	})

	t.Run("xref stream", func(t *testing.T) {
		head := "%PDF-1.5\n"
		obj := "7 0 obj\n<< /Type /XRef /Size 8 /Root 1 0 R /Encrypt 6 0 R >>\nstream\n\x00\nendstream\nendobj\n"
		data := []byte(head + obj + fmt.Sprintf("startxref\n%d\n%%%%EOF\n", len(head)))
		dicts := trailerDicts(data)
		gt.Number(t, len(dicts)).Equal(1)
		gt.Value(t, rawProtection(data)).Equal("encrypted")
	})

	t.Run("keyword inside text", func(t *testing.T) {
		data := []byte("%PDF-1.4\n4 0 obj\n<< /Length 40 >>\nstream\n(see the trailer << /Encrypt >>) Tj\nendstream\nendobj\n" +
			"trailer\n<< /Size 5 /Root 1 0 R >>\nstartxref\n0\n%%EOF\n")
		gt.Value(t, rawProtection(data)).Equal("")
	})
}
